package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/upb/llm-router/internal/observability"
	"github.com/upb/llm-router/services"
	"github.com/upb/llm-router/services/providers"
)

const (
	// NoneModelID marks the synthetic outcome of an exhausted waterfall
	NoneModelID = "none"

	// ErrAllFailed is the text of the exhausted-waterfall outcome
	ErrAllFailed = "No providers available or all providers failed"
)

// RoutingConfig holds configuration for the routing service
type RoutingConfig struct {
	// DispatchTimeout bounds a QueryAll fan-out. Zero disables the deadline.
	DispatchTimeout time.Duration

	// MaxConcurrency caps in-flight provider calls during QueryAll. Zero means unbounded.
	MaxConcurrency int

	// Preferences is the use case waterfall table
	Preferences Preferences
}

// DefaultRoutingConfig returns a sensible default configuration
func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{
		DispatchTimeout: 90 * time.Second,
		Preferences:     DefaultPreferences(),
	}
}

// Attempt is one provider call made by the waterfall
type Attempt struct {
	Provider string        `json:"provider"`
	ModelID  string        `json:"model"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Latency  time.Duration `json:"-"`
}

// Waterfall is the result of QueryBestForUseCaseTrace
type Waterfall struct {
	// Provider names the registration that answered. Empty when none did.
	Provider string
	Outcome  providers.Outcome
	Attempts []Attempt
}

// RoutingService dispatches prompts to registered providers
type RoutingService struct {
	config   RoutingConfig
	registry *providers.Registry
	metrics  observability.Metrics
	logger   *zap.Logger
}

// NewRoutingService creates a new routing service. A nil registry,
// metrics recorder or logger gets an empty/no-op default.
func NewRoutingService(config RoutingConfig, registry *providers.Registry, metrics observability.Metrics, logger *zap.Logger) *RoutingService {
	if registry == nil {
		registry = providers.NewRegistry()
	}
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Preferences == nil {
		config.Preferences = DefaultPreferences()
	}
	return &RoutingService{
		config:   config,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}
}

// Register binds name to provider, replacing any existing binding
func (s *RoutingService) Register(name string, provider providers.Provider) error {
	if err := s.registry.Register(name, provider); err != nil {
		return err
	}
	s.logger.Info("provider registered", zap.String("provider", name), zap.String("model", provider.ModelID()))
	return nil
}

// ListNames returns registered provider names in registration order
func (s *RoutingService) ListNames() []string {
	return s.registry.Names()
}

// Get returns the provider registered under name
func (s *RoutingService) Get(name string) (providers.Provider, bool) {
	return s.registry.Get(name)
}

// Preferences returns a copy of the active preference table
func (s *RoutingService) Preferences() Preferences {
	return s.config.Preferences.Clone()
}

// Explain returns the static rationale for a use case
func (s *RoutingService) Explain(useCase UseCase) string {
	return Explanation(useCase)
}

// Stats returns per-provider attempt metrics
func (s *RoutingService) Stats(ctx context.Context) (map[string]observability.ProviderStats, error) {
	return s.metrics.Snapshot(ctx)
}

// QueryOne invokes a single named provider
func (s *RoutingService) QueryOne(ctx context.Context, name, prompt string, opts providers.Options) (providers.Outcome, error) {
	p, ok := s.registry.Get(name)
	if !ok {
		return providers.Outcome{}, services.NewNotFoundError(services.ErrProviderNotFound, "provider", name)
	}
	return s.invoke(ctx, name, p, prompt, opts), nil
}

// QueryAll invokes every registered provider concurrently and waits for
// all of them. The result holds exactly one Outcome per provider
// registered when the call started. Providers still running when the
// dispatch deadline expires or ctx is cancelled get a synthesized failure.
// Metrics are recorded once per returned Outcome; a late finisher's own
// result is discarded.
func (s *RoutingService) QueryAll(ctx context.Context, prompt string, opts providers.Options) map[string]providers.Outcome {
	entries := s.registry.Snapshot()
	results := make(map[string]providers.Outcome, len(entries))
	if len(entries) == 0 {
		return results
	}

	start := time.Now()
	dctx, cancel := s.dispatchContext(ctx)
	defer cancel()

	type result struct {
		name string
		out  providers.Outcome
	}
	// Buffered so late finishers never block after the collector gives up.
	ch := make(chan result, len(entries))

	g, gctx := errgroup.WithContext(dctx)
	if s.config.MaxConcurrency > 0 {
		g.SetLimit(s.config.MaxConcurrency)
	}

	go func() {
		for _, e := range entries {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				ch <- result{name: e.Name, out: s.call(gctx, e.Name, e.Provider, prompt, opts)}
				return nil
			})
		}
		_ = g.Wait()
		close(ch)
	}()

collect:
	for len(results) < len(entries) {
		select {
		case r, ok := <-ch:
			if !ok {
				break collect
			}
			s.record(ctx, r.name, r.out)
			results[r.name] = r.out
		case <-dctx.Done():
			break collect
		}
	}

drain:
	for len(results) < len(entries) {
		select {
		case r, ok := <-ch:
			if !ok {
				break drain
			}
			s.record(ctx, r.name, r.out)
			results[r.name] = r.out
		default:
			break drain
		}
	}

	for _, e := range entries {
		if _, ok := results[e.Name]; ok {
			continue
		}
		out := providers.FailedOutcome(safeModelID(e.Name, e.Provider), start, s.abandonedError(ctx, e.Name))
		s.record(ctx, e.Name, out)
		s.logger.Warn("provider abandoned at dispatch deadline",
			zap.String("provider", e.Name),
			zap.Duration("elapsed", out.Latency))
		results[e.Name] = out
	}

	return results
}

// QueryBestForUseCase runs the use case waterfall and returns the first
// successful Outcome.
func (s *RoutingService) QueryBestForUseCase(ctx context.Context, prompt string, useCase UseCase, opts providers.Options) providers.Outcome {
	return s.QueryBestForUseCaseTrace(ctx, prompt, useCase, opts).Outcome
}

// QueryBestForUseCaseTrace tries the use case's preferred providers in
// order, then every other registered provider in registration order,
// one at a time, stopping at the first success. When nothing succeeds the
// Outcome has model "none".
func (s *RoutingService) QueryBestForUseCaseTrace(ctx context.Context, prompt string, useCase UseCase, opts providers.Options) Waterfall {
	start := time.Now()
	order := s.attemptOrder(useCase)
	logger := observability.FromContext(ctx, s.logger).With(zap.String("use_case", useCase.String()))

	var wf Waterfall
	for _, e := range order {
		if err := ctx.Err(); err != nil {
			logger.Warn("waterfall cancelled", zap.Int("attempts", len(wf.Attempts)), zap.Error(err))
			wf.Outcome = providers.FailedOutcome(NoneModelID, start,
				providers.NewProviderError("", providers.KindDeadline, fmt.Sprintf("waterfall cancelled after %d attempts", len(wf.Attempts)), 0, false, err))
			return wf
		}

		out := s.invoke(ctx, e.Name, e.Provider, prompt, opts)
		wf.Attempts = append(wf.Attempts, Attempt{
			Provider: e.Name,
			ModelID:  out.ModelID,
			Success:  out.Success(),
			Error:    out.Error,
			Latency:  out.Latency,
		})

		if out.Success() {
			logger.Info("waterfall answered",
				zap.String("provider", e.Name),
				zap.Int("attempts", len(wf.Attempts)),
				zap.Duration("latency", out.Latency))
			wf.Provider = e.Name
			wf.Outcome = out
			return wf
		}

		logger.Warn("waterfall attempt failed",
			zap.String("provider", e.Name),
			zap.String("error", out.Error))
	}

	logger.Error("waterfall exhausted", zap.Int("attempts", len(wf.Attempts)))
	wf.Outcome = providers.Outcome{
		ModelID:   NoneModelID,
		Latency:   time.Since(start),
		Error:     ErrAllFailed,
		ErrorKind: providers.KindExhausted,
	}
	return wf
}

// attemptOrder lists the registered preferred providers for useCase in
// preference order, followed by every other registered provider in
// registration order.
func (s *RoutingService) attemptOrder(useCase UseCase) []providers.Entry {
	entries := s.registry.Snapshot()
	byName := make(map[string]providers.Entry, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}

	order := make([]providers.Entry, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, name := range s.config.Preferences[useCase] {
		e, ok := byName[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		order = append(order, e)
	}
	for _, e := range entries {
		if !seen[e.Name] {
			order = append(order, e)
		}
	}
	return order
}

// invoke calls the provider and records the attempt
func (s *RoutingService) invoke(ctx context.Context, name string, provider providers.Provider, prompt string, opts providers.Options) providers.Outcome {
	out := s.call(ctx, name, provider, prompt, opts)
	s.record(ctx, name, out)
	return out
}

// call runs provider.Generate, turning a panic into a failed Outcome
// attributed to name.
func (s *RoutingService) call(ctx context.Context, name string, provider providers.Provider, prompt string, opts providers.Options) (out providers.Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("provider panicked", zap.String("provider", name), zap.Any("panic", r))
			out = providers.FailedOutcome(safeModelID(name, provider), start,
				providers.NewProviderError(name, providers.KindInvocation, fmt.Sprintf("Exception: %v", r), 0, false, nil))
		}
	}()

	return provider.Generate(ctx, prompt, opts)
}

func (s *RoutingService) record(ctx context.Context, name string, out providers.Outcome) {
	labels := observability.RequestLabels{Provider: name, Model: out.ModelID, Status: observability.StatusFailure}
	if out.Success() {
		labels.Status = observability.StatusSuccess
	}
	s.metrics.RecordRequest(ctx, labels)
	s.metrics.RecordLatency(ctx, out.Latency, labels)
	if out.TokensUsed != nil {
		s.metrics.RecordTokens(ctx, *out.TokensUsed, labels)
	}
	s.metrics.RecordCost(ctx, out.EstimatedCost, labels)
}

func (s *RoutingService) dispatchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.DispatchTimeout > 0 {
		return context.WithTimeout(ctx, s.config.DispatchTimeout)
	}
	return context.WithCancel(ctx)
}

// abandonedError explains why a provider got no Outcome of its own.
func (s *RoutingService) abandonedError(parent context.Context, name string) error {
	if err := parent.Err(); err != nil {
		if errors.Is(err, context.Canceled) {
			return providers.NewProviderError(name, providers.KindDeadline, "dispatch cancelled", 0, false, err)
		}
		return providers.NewProviderError(name, providers.KindDeadline, "dispatch deadline exceeded", 0, true, err)
	}
	return providers.NewProviderError(name, providers.KindDeadline,
		fmt.Sprintf("dispatch deadline exceeded after %s", s.config.DispatchTimeout), 0, true, nil)
}

// safeModelID reads provider.ModelID, falling back to name if it panics.
func safeModelID(name string, provider providers.Provider) (id string) {
	defer func() {
		if recover() != nil {
			id = name
		}
	}()
	return provider.ModelID()
}
