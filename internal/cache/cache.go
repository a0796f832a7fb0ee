// Package cache stores recent successful waterfall answers so identical
// prompts can skip the provider round trip.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/upb/llm-router/services/providers"
)

// Cache provides waterfall result caching
type Cache interface {
	// Get returns the cached entry for key, or nil on a miss
	Get(ctx context.Context, key string) (*Entry, error)

	// Set stores entry under key for ttl
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error

	// Ping checks the backing store is reachable
	Ping(ctx context.Context) error

	// Close releases the connection
	Close() error
}

// Entry is a cached successful answer.
type Entry struct {
	Provider      string  `json:"provider"`
	ModelID       string  `json:"model"`
	Content       string  `json:"content"`
	LatencyMS     int64   `json:"latency_ms"`
	TokensUsed    *int    `json:"tokens_used,omitempty"`
	EstimatedCost float64 `json:"estimated_cost"`
}

// NewEntry captures a successful outcome answered by provider.
func NewEntry(provider string, out providers.Outcome) *Entry {
	return &Entry{
		Provider:      provider,
		ModelID:       out.ModelID,
		Content:       out.Content,
		LatencyMS:     out.Latency.Milliseconds(),
		TokensUsed:    out.TokensUsed,
		EstimatedCost: out.EstimatedCost,
	}
}

// Outcome rebuilds the cached outcome. Latency is the original call's.
func (e *Entry) Outcome() providers.Outcome {
	return providers.Outcome{
		ModelID:       e.ModelID,
		Content:       e.Content,
		Latency:       time.Duration(e.LatencyMS) * time.Millisecond,
		TokensUsed:    e.TokensUsed,
		EstimatedCost: e.EstimatedCost,
	}
}

// Key derives the cache key for a waterfall request. Extra options are
// ignored by every backend and so do not take part.
func Key(useCase, prompt string, opts providers.Options) string {
	h := sha256.New()
	h.Write([]byte(useCase))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(opts.MaxTokens)))
	h.Write([]byte{0})
	if opts.Temperature != nil {
		h.Write([]byte(strconv.FormatFloat(*opts.Temperature, 'g', -1, 64)))
	}
	return useCase + ":" + hex.EncodeToString(h.Sum(nil))
}
