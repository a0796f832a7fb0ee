package providers

import (
	"context"
	"sync"
)

// Handle lazily builds a backend client once and hands out the same
// value afterwards. A failed build is not cached, so a later call retries.
type Handle[T any] struct {
	mu    sync.Mutex
	ready bool
	value T
	build func(ctx context.Context) (T, error)
}

// NewHandle returns a Handle that uses build on first Get.
func NewHandle[T any](build func(ctx context.Context) (T, error)) *Handle[T] {
	return &Handle[T]{build: build}
}

// Get returns the client, building it under the lock if needed.
func (h *Handle[T]) Get(ctx context.Context) (T, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ready {
		return h.value, nil
	}
	v, err := h.build(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	h.value = v
	h.ready = true
	return v, nil
}

// Ready reports whether the client has been built.
func (h *Handle[T]) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}
