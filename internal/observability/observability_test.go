package observability

import (
	"context"
	"sync"
	"testing"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"json info", "info", "json", false},
		{"console debug", "debug", "console", false},
		{"defaults", "", "", false},
		{"upper case level", "WARN", "json", false},
		{"invalid level", "loud", "json", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.format)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid log level")
				assert.Nil(t, logger)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			_ = logger.Sync()
		})
	}
}

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := context.WithValue(context.Background(), chimiddleware.RequestIDKey, "req-123")
	FromContext(ctx, base).Info("hello")
	FromContext(context.Background(), base).Info("bare")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-123", entries[0].ContextMap()["request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")

	assert.NotNil(t, FromContext(ctx, nil))
}

func TestInMemoryMetrics(t *testing.T) {
	m := NewInMemoryMetrics()
	ctx := context.Background()

	ok := RequestLabels{Provider: "groq", Model: "llama3-8b-8192", Status: StatusSuccess}
	bad := RequestLabels{Provider: "groq", Model: "llama3-8b-8192", Status: StatusFailure}

	m.RecordRequest(ctx, ok)
	m.RecordLatency(ctx, 100*time.Millisecond, ok)
	m.RecordTokens(ctx, 30, ok)
	m.RecordCost(ctx, 0, ok)
	m.RecordRequest(ctx, bad)
	m.RecordLatency(ctx, 300*time.Millisecond, bad)

	stats, err := m.Snapshot(ctx)
	require.NoError(t, err)
	require.Contains(t, stats, "groq")

	s := stats["groq"]
	assert.Equal(t, int64(2), s.Requests)
	assert.Equal(t, int64(1), s.Successes)
	assert.Equal(t, int64(1), s.Failures)
	assert.Equal(t, int64(30), s.TotalTokens)
	assert.InDelta(t, 200.0, s.AvgLatencyMS, 0.001)
	assert.Equal(t, "llama3-8b-8192", s.LastModel)

	m.Reset()
	stats, _ = m.Snapshot(ctx)
	assert.Empty(t, stats)
}

func TestInMemoryMetrics_Concurrent(t *testing.T) {
	m := NewInMemoryMetrics()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordRequest(ctx, RequestLabels{Provider: "ollama", Status: StatusSuccess})
		}()
	}
	wg.Wait()

	stats, err := m.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stats["ollama"].Requests)
}

func TestStatsFromHash(t *testing.T) {
	s := statsFromHash(map[string]string{
		"requests":         "4",
		"successes":        "3",
		"failures":         "1",
		"latency_ms_total": "1000",
		"latency_count":    "4",
		"tokens":           "120",
		"cost":             "0.5",
		"last_model":       "gemini-pro",
	})

	assert.Equal(t, int64(4), s.Requests)
	assert.Equal(t, int64(3), s.Successes)
	assert.Equal(t, int64(1), s.Failures)
	assert.Equal(t, 250.0, s.AvgLatencyMS)
	assert.Equal(t, int64(120), s.TotalTokens)
	assert.Equal(t, 0.5, s.TotalCost)
	assert.Equal(t, "gemini-pro", s.LastModel)

	assert.Equal(t, ProviderStats{}, statsFromHash(map[string]string{}))
}

func TestSortedProviders(t *testing.T) {
	got := SortedProviders(map[string]ProviderStats{"ollama": {}, "gemini": {}, "groq": {}})
	assert.Equal(t, []string{"gemini", "groq", "ollama"}, got)
}
