package observability

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Attempt statuses recorded by the dispatcher.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics collects per-provider dispatch metrics.
type Metrics interface {
	RecordRequest(ctx context.Context, labels RequestLabels)
	RecordLatency(ctx context.Context, latency time.Duration, labels RequestLabels)
	RecordTokens(ctx context.Context, tokens int, labels RequestLabels)
	RecordCost(ctx context.Context, cost float64, labels RequestLabels)

	// Snapshot returns the aggregated stats keyed by provider name.
	Snapshot(ctx context.Context) (map[string]ProviderStats, error)
}

// RequestLabels contains metric dimensions.
type RequestLabels struct {
	Provider string
	Model    string
	Status   string
}

// ProviderStats aggregates the attempts made against one provider.
type ProviderStats struct {
	Requests     int64   `json:"requests"`
	Successes    int64   `json:"successes"`
	Failures     int64   `json:"failures"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
	TotalTokens  int64   `json:"total_tokens"`
	TotalCost    float64 `json:"total_cost"`
	LastModel    string  `json:"last_model,omitempty"`
}

// InMemoryMetrics keeps counters in process memory.
type InMemoryMetrics struct {
	mu           sync.Mutex
	stats        map[string]*ProviderStats
	latencyTotal map[string]time.Duration
	latencyCount map[string]int64
}

// NewInMemoryMetrics creates an empty recorder
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		stats:        make(map[string]*ProviderStats),
		latencyTotal: make(map[string]time.Duration),
		latencyCount: make(map[string]int64),
	}
}

func (m *InMemoryMetrics) entry(provider string) *ProviderStats {
	s, ok := m.stats[provider]
	if !ok {
		s = &ProviderStats{}
		m.stats[provider] = s
	}
	return s
}

func (m *InMemoryMetrics) RecordRequest(_ context.Context, labels RequestLabels) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.entry(labels.Provider)
	s.Requests++
	if labels.Status == StatusSuccess {
		s.Successes++
	} else {
		s.Failures++
	}
	if labels.Model != "" {
		s.LastModel = labels.Model
	}
}

func (m *InMemoryMetrics) RecordLatency(_ context.Context, latency time.Duration, labels RequestLabels) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latencyTotal[labels.Provider] += latency
	m.latencyCount[labels.Provider]++
	s := m.entry(labels.Provider)
	s.AvgLatencyMS = float64(m.latencyTotal[labels.Provider].Milliseconds()) / float64(m.latencyCount[labels.Provider])
}

func (m *InMemoryMetrics) RecordTokens(_ context.Context, tokens int, labels RequestLabels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(labels.Provider).TotalTokens += int64(tokens)
}

func (m *InMemoryMetrics) RecordCost(_ context.Context, cost float64, labels RequestLabels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(labels.Provider).TotalCost += cost
}

func (m *InMemoryMetrics) Snapshot(context.Context) (map[string]ProviderStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]ProviderStats, len(m.stats))
	for name, s := range m.stats {
		out[name] = *s
	}
	return out, nil
}

// Reset clears all counters.
func (m *InMemoryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats = make(map[string]*ProviderStats)
	m.latencyTotal = make(map[string]time.Duration)
	m.latencyCount = make(map[string]int64)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordRequest(context.Context, RequestLabels) {}
func (NopMetrics) RecordLatency(context.Context, time.Duration, RequestLabels) {}
func (NopMetrics) RecordTokens(context.Context, int, RequestLabels) {}
func (NopMetrics) RecordCost(context.Context, float64, RequestLabels) {}

func (NopMetrics) Snapshot(context.Context) (map[string]ProviderStats, error) {
	return map[string]ProviderStats{}, nil
}

// SortedProviders returns the keys of stats in lexical order.
func SortedProviders(stats map[string]ProviderStats) []string {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
