package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	statsKeyPrefix    = "llmrouter:stats:"
	statsProvidersKey = statsKeyPrefix + "providers"
)

// RedisMetrics keeps counters in Redis hashes so several router replicas
// share one view. Write failures are logged, never returned.
type RedisMetrics struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewRedisMetrics wraps an existing client
func NewRedisMetrics(client redis.UniversalClient, logger *zap.Logger) *RedisMetrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisMetrics{client: client, logger: logger}
}

func statsKey(provider string) string {
	return statsKeyPrefix + provider
}

func (m *RedisMetrics) exec(ctx context.Context, op string, fn func(pipe redis.Pipeliner)) {
	pipe := m.client.TxPipeline()
	fn(pipe)
	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Warn("redis metrics write failed", zap.String("op", op), zap.Error(err))
	}
}

func (m *RedisMetrics) RecordRequest(ctx context.Context, labels RequestLabels) {
	m.exec(ctx, "request", func(pipe redis.Pipeliner) {
		key := statsKey(labels.Provider)
		pipe.SAdd(ctx, statsProvidersKey, labels.Provider)
		pipe.HIncrBy(ctx, key, "requests", 1)
		if labels.Status == StatusSuccess {
			pipe.HIncrBy(ctx, key, "successes", 1)
		} else {
			pipe.HIncrBy(ctx, key, "failures", 1)
		}
		if labels.Model != "" {
			pipe.HSet(ctx, key, "last_model", labels.Model)
		}
	})
}

func (m *RedisMetrics) RecordLatency(ctx context.Context, latency time.Duration, labels RequestLabels) {
	m.exec(ctx, "latency", func(pipe redis.Pipeliner) {
		key := statsKey(labels.Provider)
		pipe.HIncrBy(ctx, key, "latency_ms_total", latency.Milliseconds())
		pipe.HIncrBy(ctx, key, "latency_count", 1)
	})
}

func (m *RedisMetrics) RecordTokens(ctx context.Context, tokens int, labels RequestLabels) {
	m.exec(ctx, "tokens", func(pipe redis.Pipeliner) {
		pipe.HIncrBy(ctx, statsKey(labels.Provider), "tokens", int64(tokens))
	})
}

func (m *RedisMetrics) RecordCost(ctx context.Context, cost float64, labels RequestLabels) {
	m.exec(ctx, "cost", func(pipe redis.Pipeliner) {
		pipe.HIncrByFloat(ctx, statsKey(labels.Provider), "cost", cost)
	})
}

func (m *RedisMetrics) Snapshot(ctx context.Context) (map[string]ProviderStats, error) {
	names, err := m.client.SMembers(ctx, statsProvidersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}

	pipe := m.client.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(names))
	for _, name := range names {
		cmds[name] = pipe.HGetAll(ctx, statsKey(name))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read stats: %w", err)
	}

	out := make(map[string]ProviderStats, len(names))
	for name, cmd := range cmds {
		out[name] = statsFromHash(cmd.Val())
	}
	return out, nil
}

// statsFromHash decodes the hash layout written by the Record methods.
func statsFromHash(h map[string]string) ProviderStats {
	i := func(k string) int64 {
		n, _ := strconv.ParseInt(h[k], 10, 64)
		return n
	}
	f := func(k string) float64 {
		n, _ := strconv.ParseFloat(h[k], 64)
		return n
	}

	s := ProviderStats{
		Requests:    i("requests"),
		Successes:   i("successes"),
		Failures:    i("failures"),
		TotalTokens: i("tokens"),
		TotalCost:   f("cost"),
		LastModel:   h["last_model"],
	}
	if n := i("latency_count"); n > 0 {
		s.AvgLatencyMS = float64(i("latency_ms_total")) / float64(n)
	}
	return s
}
