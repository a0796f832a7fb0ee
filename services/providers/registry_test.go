package providers

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{ model string }

func (s stubProvider) ModelID() string { return s.model }

func (s stubProvider) Generate(context.Context, string, Options) Outcome {
	return Outcome{ModelID: s.model, Content: "ok"}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("groq", stubProvider{"llama3-8b-8192"}))
	require.NoError(t, r.Register("gemini", stubProvider{"gemini-pro"}))

	p, ok := r.Get("groq")
	require.True(t, ok)
	assert.Equal(t, "llama3-8b-8192", p.ModelID())

	_, ok = r.Get("openai")
	assert.False(t, ok)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_RegisterOverwritesInPlace(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("a", stubProvider{"a1"}))
	require.NoError(t, r.Register("b", stubProvider{"b1"}))
	require.NoError(t, r.Register("a", stubProvider{"a2"}))

	assert.Equal(t, []string{"a", "b"}, r.Names())
	p, _ := r.Get("a")
	assert.Equal(t, "a2", p.ModelID())

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a2", snap[0].Provider.ModelID())
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register("", stubProvider{"x"}), ErrInvalidRegistration)
	assert.ErrorIs(t, r.Register("x", nil), ErrInvalidRegistration)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = r.Register(fmt.Sprintf("p%d", i%10), stubProvider{fmt.Sprintf("m%d", i)})
		}(i)
		go func() {
			defer wg.Done()
			for _, e := range r.Snapshot() {
				_ = e.Provider.ModelID()
			}
			_ = r.Names()
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, r.Len())
	assert.Len(t, r.Names(), 10)
}
