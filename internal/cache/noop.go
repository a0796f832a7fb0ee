package cache

import (
	"context"
	"time"
)

// NoOpCache always misses. It stands in when REDIS_URL is unset.
type NoOpCache struct{}

// NewNoOpCache creates a new no-op cache instance
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// Get always returns nil (cache miss)
func (c *NoOpCache) Get(context.Context, string) (*Entry, error) { return nil, nil }

// Set does nothing
func (c *NoOpCache) Set(context.Context, string, *Entry, time.Duration) error { return nil }

// Ping always succeeds
func (c *NoOpCache) Ping(context.Context) error { return nil }

// Close always succeeds
func (c *NoOpCache) Close() error { return nil }
