package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/upb/llm-router/config"
	"github.com/upb/llm-router/internal/cache"
	"github.com/upb/llm-router/internal/observability"
	"github.com/upb/llm-router/internal/screening"
	"github.com/upb/llm-router/services/evaluation"
	"github.com/upb/llm-router/services/events"
	"github.com/upb/llm-router/services/inference"
	"github.com/upb/llm-router/services/providers"
	"github.com/upb/llm-router/services/providers/gemini"
	"github.com/upb/llm-router/services/providers/huggingface"
	"github.com/upb/llm-router/services/providers/ollama"
	"github.com/upb/llm-router/services/providers/openaicompat"
	"github.com/upb/llm-router/services/routing"
)

const pingTimeout = 5 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point shared by the HTTP server and the CLI.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	Redis  redis.UniversalClient // nil when REDIS_URL is unset or unreachable

	// Sinks
	Cache   cache.Cache
	Metrics observability.Metrics
	Events  events.Publisher

	// Services
	Router    *routing.RoutingService
	Evaluator *evaluation.Evaluator
	Inference *inference.InferenceService

	StartedAt time.Time
}

// NewDependencies creates and wires up all application dependencies.
// Redis and NATS are optional: when configured but unreachable the
// process falls back to in-memory metrics, no caching and no events.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	deps := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		StartedAt: time.Now(),
	}

	deps.initRedis(ctx, cfg)
	deps.initEvents(cfg)

	if err := deps.initRouting(cfg); err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to initialize routing: %w", err)
	}
	deps.initProviders(ctx, cfg)

	deps.Evaluator = evaluation.NewEvaluator(evaluation.FleschScorer{})
	deps.Inference = inference.NewInferenceService(deps.Router, deps.Evaluator, deps.Cache, cfg.Infra.CacheTTL, deps.Events, logger)
	if cfg.Screening.Enabled {
		guard := screening.NewGuard(cfg.Screening.MaxRisk)
		deps.Inference.WithScreener(guard)
		logger.Info("prompt screening enabled", zap.Float64("threshold", guard.Threshold()))
	}

	logger.Info("all dependencies initialized successfully",
		zap.Strings("providers", deps.Router.ListNames()),
		zap.Bool("redis", deps.Redis != nil),
		zap.Bool("nats", deps.Events.Connected()))
	return deps, nil
}

// initRedis connects the response cache and metrics store
func (d *Dependencies) initRedis(ctx context.Context, cfg *config.Config) {
	d.Cache = cache.NewNoOpCache()
	d.Metrics = observability.NewInMemoryMetrics()

	if cfg.Infra.RedisURL == "" {
		return
	}

	opts, err := redis.ParseURL(cfg.Infra.RedisURL)
	if err != nil {
		d.Logger.Warn("invalid REDIS_URL, using in-memory metrics", zap.Error(err))
		return
	}
	client := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		d.Logger.Warn("redis unreachable, using in-memory metrics and no cache", zap.Error(err))
		_ = client.Close()
		return
	}

	d.Redis = client
	d.Cache = cache.NewRedisCache(client)
	d.Metrics = observability.NewRedisMetrics(client, d.Logger)
	d.Logger.Info("redis connection established", zap.String("addr", opts.Addr))
}

// initEvents connects the dispatch event publisher
func (d *Dependencies) initEvents(cfg *config.Config) {
	d.Events = events.NoOpPublisher{}
	if cfg.Infra.NATSURL == "" {
		return
	}

	pub, err := events.Connect(cfg.Infra.NATSURL, d.Logger)
	if err != nil {
		d.Logger.Warn("nats unreachable, dispatch events disabled", zap.Error(err))
		return
	}
	d.Events = pub
	d.Logger.Info("nats connection established", zap.String("subject", events.SubjectDispatchCompleted))
}

// initRouting builds the dispatcher and its preference table
func (d *Dependencies) initRouting(cfg *config.Config) error {
	rc := routing.DefaultRoutingConfig()
	rc.DispatchTimeout = cfg.Routing.DispatchTimeout
	rc.MaxConcurrency = cfg.Routing.MaxConcurrency

	if path := cfg.Routing.PreferencesFile; path != "" {
		prefs, err := routing.LoadPreferences(path)
		if err != nil {
			return err
		}
		rc.Preferences = prefs
		d.Logger.Info("loaded use case preferences", zap.String("path", path))
	}

	d.Router = routing.NewRoutingService(rc, providers.NewRegistry(), d.Metrics, d.Logger)
	return nil
}

// initProviders registers every backend whose credential is present,
// then the local Ollama server, which needs none.
func (d *Dependencies) initProviders(ctx context.Context, cfg *config.Config) {
	pc := cfg.Providers
	register := func(name string, p providers.Provider) {
		if err := d.Router.Register(name, p); err != nil {
			d.Logger.Error("failed to register provider", zap.String("provider", name), zap.Error(err))
			return
		}
		d.warmUp(ctx, name, p)
	}

	if pc.HuggingFace.Enabled() {
		register("huggingface", huggingface.NewAdapter(remoteConfig(pc.HuggingFace)))
	}
	if pc.Gemini.Enabled() {
		register("gemini", gemini.NewAdapter(remoteConfig(pc.Gemini)))
	}
	if pc.Groq.Enabled() {
		register("groq", openaicompat.NewGroq(remoteConfig(pc.Groq)))
	}
	if pc.OpenRouter.Enabled() {
		register("openrouter", openaicompat.NewOpenRouter(remoteConfig(pc.OpenRouter)))
	}

	register("ollama", ollama.NewAdapter(providers.ProviderConfig{
		BaseURL: pc.Ollama.BaseURL,
		Model:   pc.Ollama.Model,
		Timeout: pc.Ollama.Timeout,
	}))
}

// warmUp builds a provider's client ahead of the first query. A failure
// is only logged: the provider stays registered and reports the same
// error in its Outcome.
func (d *Dependencies) warmUp(ctx context.Context, name string, p providers.Provider) {
	r, ok := p.(providers.Readier)
	if !ok {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := r.EnsureReady(wctx); err != nil {
		d.Logger.Warn("provider not ready",
			zap.String("provider", name),
			zap.String("kind", string(providers.KindOf(err))),
			zap.Error(err))
	}
}

func remoteConfig(c config.RemoteProviderConfig) providers.ProviderConfig {
	return providers.ProviderConfig{
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		Model:   c.Model,
		Timeout: c.Timeout,
	}
}

// Readiness reports the state of each dependency
type Readiness struct {
	Providers int    `json:"providers"`
	Redis     string `json:"redis"`
	NATS      string `json:"nats"`
}

// Ready reports whether the service can answer queries
func (r Readiness) Ready() bool {
	return r.Providers > 0 && r.Redis != "down"
}

// CheckReadiness pings the optional backends
func (d *Dependencies) CheckReadiness(ctx context.Context) Readiness {
	r := Readiness{
		Providers: len(d.Router.ListNames()),
		Redis:     "disabled",
		NATS:      "disabled",
	}

	if d.Redis != nil {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		r.Redis = "up"
		if err := d.Cache.Ping(pctx); err != nil {
			d.Logger.Warn("redis readiness check failed", zap.Error(err))
			r.Redis = "down"
		}
	}

	if _, ok := d.Events.(events.NoOpPublisher); !ok {
		r.NATS = "up"
		if !d.Events.Connected() {
			r.NATS = "reconnecting"
		}
	}
	return r
}

// Close releases network connections
func (d *Dependencies) Close() error {
	var errs []error
	if d.Events != nil {
		errs = append(errs, d.Events.Close())
	}
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	return errors.Join(errs...)
}
