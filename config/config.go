package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Environment   string `env:"ENVIRONMENT" envDefault:"development"`
	Server        ServerConfig
	Observability ObservabilityConfig
	Providers     ProvidersConfig
	Routing       RoutingConfig
	Screening     ScreeningConfig
	Infra         InfraConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// CORSAllowedOrigins is a comma-separated list
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // json or console
}

// ProvidersConfig holds one block per backend kind
type ProvidersConfig struct {
	Groq        RemoteProviderConfig `envPrefix:"GROQ_"`
	Gemini      RemoteProviderConfig `envPrefix:"GEMINI_"`
	HuggingFace RemoteProviderConfig `envPrefix:"HUGGINGFACE_"`
	OpenRouter  RemoteProviderConfig `envPrefix:"OPENROUTER_"`
	Ollama      OllamaConfig         `envPrefix:"OLLAMA_"`
}

// RemoteProviderConfig configures an API-keyed backend. Empty fields fall
// back to the backend's defaults.
type RemoteProviderConfig struct {
	APIKey  string        `env:"API_KEY"`
	BaseURL string        `env:"BASE_URL"`
	Model   string        `env:"MODEL"`
	Timeout time.Duration `env:"TIMEOUT"`
}

// Enabled reports whether the backend has a credential and should be registered
func (c RemoteProviderConfig) Enabled() bool {
	return c.APIKey != ""
}

// OllamaConfig configures the local inference server
type OllamaConfig struct {
	BaseURL string        `env:"BASE_URL" envDefault:"http://localhost:11434"`
	Model   string        `env:"MODEL" envDefault:"llama3"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"120s"`
}

// RoutingConfig holds dispatcher configuration
type RoutingConfig struct {
	DispatchTimeout time.Duration `env:"DISPATCH_TIMEOUT" envDefault:"90s"`
	MaxConcurrency  int           `env:"MAX_CONCURRENCY" envDefault:"0"`
	PreferencesFile string        `env:"PREFERENCES_FILE"`
}

// ScreeningConfig controls the prompt injection guard
type ScreeningConfig struct {
	Enabled bool    `env:"PROMPT_SCREENING" envDefault:"false"`
	MaxRisk float64 `env:"PROMPT_MAX_RISK" envDefault:"0.8"`
}

// InfraConfig holds optional Redis and NATS endpoints
type InfraConfig struct {
	RedisURL string        `env:"REDIS_URL"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"10m"`
	NATSURL  string        `env:"NATS_URL"`
}

// Load reads .env if present, then the process environment
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	return Parse(nil)
}

// Parse builds a Config from environ, or from the process environment
// when environ is nil, and validates it.
func Parse(environ map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration and reports every problem found
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("READ_TIMEOUT and WRITE_TIMEOUT must be positive"))
	}
	if c.Routing.DispatchTimeout < 0 {
		errs = append(errs, errors.New("DISPATCH_TIMEOUT must not be negative"))
	}
	if c.Routing.DispatchTimeout > 0 && c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.Routing.DispatchTimeout {
		errs = append(errs, fmt.Errorf("WRITE_TIMEOUT (%s) must exceed DISPATCH_TIMEOUT (%s)", c.Server.WriteTimeout, c.Routing.DispatchTimeout))
	}
	if c.Routing.MaxConcurrency < 0 {
		errs = append(errs, errors.New("MAX_CONCURRENCY must not be negative"))
	}

	if c.Screening.Enabled && (c.Screening.MaxRisk <= 0 || c.Screening.MaxRisk > 1) {
		errs = append(errs, fmt.Errorf("PROMPT_MAX_RISK must be in (0, 1], got %g", c.Screening.MaxRisk))
	}

	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.Observability.LogLevel))
	}
	switch c.Observability.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Observability.LogFormat))
	}

	if c.Providers.Ollama.BaseURL == "" {
		errs = append(errs, errors.New("OLLAMA_BASE_URL is required"))
	} else if err := checkURL(c.Providers.Ollama.BaseURL, "http", "https"); err != nil {
		errs = append(errs, fmt.Errorf("OLLAMA_BASE_URL: %w", err))
	}

	if c.Infra.RedisURL != "" {
		if err := checkURL(c.Infra.RedisURL, "redis", "rediss"); err != nil {
			errs = append(errs, fmt.Errorf("REDIS_URL: %w", err))
		}
		if c.Infra.CacheTTL < 0 {
			errs = append(errs, errors.New("CACHE_TTL must not be negative"))
		}
	}
	if c.Infra.NATSURL != "" {
		if err := checkURL(c.Infra.NATSURL, "nats", "tls"); err != nil {
			errs = append(errs, fmt.Errorf("NATS_URL: %w", err))
		}
	}

	return errors.Join(errs...)
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("expected %v URL with a host, got %q", schemes, raw)
}
