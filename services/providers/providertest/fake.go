// Package providertest holds provider doubles shared by tests in other packages.
package providertest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/upb/llm-router/services/providers"
)

// CallLog records the order in which providers were invoked.
// It is safe for concurrent use.
type CallLog struct {
	mu    sync.Mutex
	names []string
}

func (l *CallLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

// Names returns the recorded invocation order.
func (l *CallLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// Fake is a scripted provider. With Err set it fails; with Panic set it
// panics inside Generate; otherwise it returns Content after Delay.
type Fake struct {
	Name    string
	Model   string
	Content string
	Err     error
	Panic   any
	Delay   time.Duration
	Tokens  int
	Log     *CallLog

	calls atomic.Int32
}

// NewFake returns a healthy fake answering with content.
func NewFake(name, content string) *Fake {
	return &Fake{Name: name, Model: name + "-model", Content: content, Tokens: -1}
}

// NewFailing returns a fake whose every call fails with err.
func NewFailing(name string, err error) *Fake {
	return &Fake{Name: name, Model: name + "-model", Err: err, Tokens: -1}
}

// Calls returns how many times Generate ran.
func (f *Fake) Calls() int {
	return int(f.calls.Load())
}

func (f *Fake) ModelID() string { return f.Model }

func (f *Fake) Generate(ctx context.Context, _ string, _ providers.Options) providers.Outcome {
	f.calls.Add(1)
	if f.Log != nil {
		f.Log.add(f.Name)
	}
	start := time.Now()

	if f.Panic != nil {
		panic(f.Panic)
	}
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return providers.FailedOutcome(f.Model, start, providers.RequestFailed(f.Name, ctx.Err()))
		}
	}
	if f.Err != nil {
		return providers.FailedOutcome(f.Model, start, f.Err)
	}
	return providers.SucceededOutcome(f.Model, f.Content, start, f.Tokens)
}

// ErrDown is a convenience failure for fakes.
var ErrDown = errors.New("backend down")

// MockProvider is a testify mock of providers.Provider.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) ModelID() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockProvider) Generate(ctx context.Context, prompt string, opts providers.Options) providers.Outcome {
	args := m.Called(ctx, prompt, opts)
	return args.Get(0).(providers.Outcome)
}
