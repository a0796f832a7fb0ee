package inference

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/llm-router/internal/cache"
	"github.com/upb/llm-router/internal/observability"
	"github.com/upb/llm-router/services"
	"github.com/upb/llm-router/services/evaluation"
	"github.com/upb/llm-router/services/events"
	"github.com/upb/llm-router/services/providers"
	"github.com/upb/llm-router/services/routing"
	"github.com/upb/llm-router/utils"
)

// InferenceService orchestrates dispatch, evaluation, caching and events
type InferenceService struct {
	router    *routing.RoutingService
	evaluator *evaluation.Evaluator
	cache     cache.Cache
	cacheTTL  time.Duration
	publisher events.Publisher
	screener  PromptScreener
	logger    *zap.Logger
}

// PromptScreener rejects prompts before any provider sees them
type PromptScreener interface {
	Check(prompt string) error
}

// NewInferenceService creates a new inference service. A nil cache,
// publisher or logger is replaced with a no-op; cacheTTL <= 0 disables
// cache writes.
func NewInferenceService(
	router *routing.RoutingService,
	evaluator *evaluation.Evaluator,
	c cache.Cache,
	cacheTTL time.Duration,
	publisher events.Publisher,
	logger *zap.Logger,
) *InferenceService {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	if publisher == nil {
		publisher = events.NoOpPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if evaluator == nil {
		evaluator = evaluation.NewEvaluator(evaluation.FleschScorer{})
	}
	return &InferenceService{
		router:    router,
		evaluator: evaluator,
		cache:     c,
		cacheTTL:  cacheTTL,
		publisher: publisher,
		logger:    logger,
	}
}

// WithScreener installs a prompt screener ahead of every dispatch
func (s *InferenceService) WithScreener(screener PromptScreener) *InferenceService {
	s.screener = screener
	return s
}

// Best runs the use case waterfall. Provider failures are reported in
// the Outcome, never as an error.
func (s *InferenceService) Best(ctx context.Context, req QueryRequest) (*BestResult, error) {
	opts, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	useCase, err := parseUseCase(req.UseCase)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	logger := observability.FromContext(ctx, s.logger).With(
		zap.String("dispatch_id", id.String()),
		zap.String("use_case", useCase.String()))
	start := time.Now()

	result := &BestResult{
		ID:          id,
		UseCase:     useCase,
		Explanation: s.router.Explain(useCase),
	}

	key := cache.Key(useCase.String(), req.Prompt, opts)
	if entry := s.lookup(ctx, logger, key); entry != nil {
		result.Provider = entry.Provider
		result.Outcome = entry.Outcome()
		result.Evaluation = s.evaluator.Evaluate(result.Outcome)
		result.Cached = true
		logger.Info("waterfall served from cache", zap.String("provider", entry.Provider))
		s.publish(ctx, logger, events.DispatchEvent{
			ID:         id,
			Mode:       events.ModeBest,
			UseCase:    useCase.String(),
			Provider:   entry.Provider,
			Model:      entry.ModelID,
			Total:      1,
			Successful: 1,
			Cached:     true,
			LatencyMS:  time.Since(start).Milliseconds(),
		})
		return result, nil
	}

	wf := s.router.QueryBestForUseCaseTrace(ctx, req.Prompt, useCase, opts)
	if err := deadlineError(ctx); err != nil {
		return nil, err
	}
	result.Provider = wf.Provider
	result.Outcome = wf.Outcome
	result.Attempts = wf.Attempts
	result.Evaluation = s.evaluator.Evaluate(wf.Outcome)

	successful := 0
	if wf.Outcome.Success() {
		successful = 1
		s.store(ctx, logger, key, cache.NewEntry(wf.Provider, wf.Outcome))
	}

	s.publish(ctx, logger, events.DispatchEvent{
		ID:         id,
		Mode:       events.ModeBest,
		UseCase:    useCase.String(),
		Provider:   wf.Provider,
		Model:      wf.Outcome.ModelID,
		Total:      len(wf.Attempts),
		Successful: successful,
		LatencyMS:  time.Since(start).Milliseconds(),
	})

	logger.Info("best query completed",
		zap.String("provider", wf.Provider),
		zap.Int("attempts", len(wf.Attempts)),
		zap.Bool("success", wf.Outcome.Success()),
		zap.Duration("latency", time.Since(start)))

	return result, nil
}

// Compare fans the prompt out to every provider and compares the outcomes
func (s *InferenceService) Compare(ctx context.Context, req QueryRequest) (*CompareResult, error) {
	opts, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	if len(s.router.ListNames()) == 0 {
		return nil, services.From(services.ErrNoProviders, "", nil)
	}

	id := uuid.New()
	logger := observability.FromContext(ctx, s.logger).With(zap.String("dispatch_id", id.String()))
	start := time.Now()

	outcomes := s.router.QueryAll(ctx, req.Prompt, opts)
	if err := deadlineError(ctx); err != nil {
		return nil, err
	}
	report := s.evaluator.Compare(s.router.ListNames(), outcomes)

	event := events.DispatchEvent{
		ID:         id,
		Mode:       events.ModeCompare,
		Total:      report.TotalModels,
		Successful: report.SuccessfulModels,
		LatencyMS:  time.Since(start).Milliseconds(),
	}
	if report.Fastest != nil {
		event.Provider = report.Fastest.Name
	}
	s.publish(ctx, logger, event)

	logger.Info("compare query completed",
		zap.Int("total", report.TotalModels),
		zap.Int("successful", report.SuccessfulModels),
		zap.Duration("latency", time.Since(start)))

	return &CompareResult{ID: id, Outcomes: outcomes, Report: report}, nil
}

// Single queries one named provider
func (s *InferenceService) Single(ctx context.Context, provider string, req QueryRequest) (*SingleResult, error) {
	opts, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	out, err := s.router.QueryOne(ctx, provider, req.Prompt, opts)
	if err != nil {
		return nil, err
	}
	if err := deadlineError(ctx); err != nil {
		return nil, err
	}

	id := uuid.New()
	logger := observability.FromContext(ctx, s.logger).With(zap.String("dispatch_id", id.String()))

	successful := 0
	if out.Success() {
		successful = 1
	}
	s.publish(ctx, logger, events.DispatchEvent{
		ID:         id,
		Mode:       events.ModeSingle,
		Provider:   provider,
		Model:      out.ModelID,
		Total:      1,
		Successful: successful,
		LatencyMS:  out.Latency.Milliseconds(),
	})

	return &SingleResult{
		ID:         id,
		Provider:   provider,
		Outcome:    out,
		Evaluation: s.evaluator.Evaluate(out),
	}, nil
}

// Providers lists registered providers in registration order
func (s *InferenceService) Providers() []ProviderInfo {
	names := s.router.ListNames()
	infos := make([]ProviderInfo, 0, len(names))
	for _, name := range names {
		p, ok := s.router.Get(name)
		if !ok {
			continue
		}
		infos = append(infos, ProviderInfo{Name: name, ModelID: p.ModelID()})
	}
	return infos
}

// UseCases lists every use case with its waterfall
func (s *InferenceService) UseCases() []UseCaseInfo {
	prefs := s.router.Preferences()
	infos := make([]UseCaseInfo, 0, len(routing.AllUseCases()))
	for _, u := range routing.AllUseCases() {
		infos = append(infos, UseCaseInfo{
			Name:        u,
			Preferences: prefs.For(u),
			Explanation: s.router.Explain(u),
		})
	}
	return infos
}

// Explain returns the rationale for a named use case
func (s *InferenceService) Explain(name string) (string, error) {
	u, err := routing.ParseUseCase(name)
	if err != nil {
		return "", services.NewNotFoundError(services.ErrUseCaseNotFound, "use case", name)
	}
	return s.router.Explain(u), nil
}

// Stats returns per-provider attempt metrics
func (s *InferenceService) Stats(ctx context.Context) (map[string]observability.ProviderStats, error) {
	stats, err := s.router.Stats(ctx)
	if err != nil {
		return nil, services.From(services.ErrMetricsUnavailable, "", err)
	}
	return stats, nil
}

// NormalizeMode lowercases and trims a query mode; empty means best
func NormalizeMode(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		return ModeBest
	}
	return mode
}

// prepare validates req and converts its option map
func (s *InferenceService) prepare(req QueryRequest) (providers.Options, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return providers.Options{}, services.NewValidationError(services.ErrEmptyPrompt, "prompt", "prompt cannot be empty")
	}
	if mode := NormalizeMode(req.Mode); mode != ModeBest && mode != ModeCompare {
		return providers.Options{}, services.NewValidationError(services.ErrInvalidMode, "mode", "mode must be best or compare")
	}
	if s.screener != nil {
		if err := s.screener.Check(req.Prompt); err != nil {
			return providers.Options{}, services.From(services.ErrPromptRejected, "", err).WithDetail("field", "prompt")
		}
	}
	if err := utils.ValidateStruct(req); err != nil {
		derr := services.From(services.ErrInvalidInput, "", err)
		for field, msg := range utils.GetValidationFields(err) {
			derr.WithDetail(field, msg)
		}
		return providers.Options{}, derr
	}

	opts, err := providers.OptionsFromMap(req.Options)
	if err != nil {
		return providers.Options{}, services.From(services.ErrInvalidOptions, "", err).WithDetail("field", "options")
	}
	return opts, nil
}

func parseUseCase(name string) (routing.UseCase, error) {
	if strings.TrimSpace(name) == "" {
		return routing.UseCaseGeneral, nil
	}
	u, err := routing.ParseUseCase(name)
	if err != nil {
		return "", services.From(services.ErrInvalidInput, err.Error(), services.ErrUseCaseNotFound).
			WithDetail("field", "use_case")
	}
	return u, nil
}

// deadlineError reports a caller deadline that expired during dispatch
func deadlineError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.From(services.ErrDispatchTimeout, "", ctx.Err())
	}
	return nil
}

func (s *InferenceService) lookup(ctx context.Context, logger *zap.Logger, key string) *cache.Entry {
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache lookup failed", zap.Error(err))
		return nil
	}
	return entry
}

func (s *InferenceService) store(ctx context.Context, logger *zap.Logger, key string, entry *cache.Entry) {
	if s.cacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, entry, s.cacheTTL); err != nil {
		logger.Warn("cache write failed", zap.Error(err))
	}
}

func (s *InferenceService) publish(ctx context.Context, logger *zap.Logger, event events.DispatchEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		logger.Warn("dispatch event dropped", zap.Error(err))
	}
}
