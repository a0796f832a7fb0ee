package providers

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Provider is the capability every text-generation backend exposes.
//
// Generate must never panic or return a Go error to its caller: every
// backend fault is absorbed and reported as a failed Outcome.
type Provider interface {
	// ModelID returns the concrete model identifier this provider calls.
	ModelID() string

	// Generate sends prompt to the backend and returns the standardized result.
	Generate(ctx context.Context, prompt string, opts Options) Outcome
}

// Readier is implemented by providers that hold a lazily built client
// handle. EnsureReady is idempotent and safe to call concurrently.
type Readier interface {
	EnsureReady(ctx context.Context) error
}

// Options carries generation parameters. Only MaxTokens and Temperature
// are recognized; everything else lands in Extra and is ignored.
type Options struct {
	// MaxTokens bounds the generated length. Zero means backend default.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls sampling randomness in [0,1]. Nil means backend default.
	Temperature *float64 `json:"temperature,omitempty"`

	// Extra holds unrecognized keys verbatim.
	Extra map[string]any `json:"-"`
}

// MaxTokensOr returns MaxTokens, or def when unset.
func (o Options) MaxTokensOr(def int) int {
	if o.MaxTokens > 0 {
		return o.MaxTokens
	}
	return def
}

// TemperatureOr returns Temperature, or def when unset.
func (o Options) TemperatureOr(def float64) float64 {
	if o.Temperature != nil {
		return *o.Temperature
	}
	return def
}

// WithTemperature returns a copy of o with Temperature set.
func (o Options) WithTemperature(t float64) Options {
	o.Temperature = &t
	return o
}

// OptionsFromMap builds Options from an open key/value set such as a
// decoded JSON object. Recognized keys with a wrong type or an out of
// range value are reported; unknown keys are kept in Extra.
func OptionsFromMap(m map[string]any) (Options, error) {
	var opts Options
	for k, v := range m {
		switch k {
		case "max_tokens":
			n, ok := toFloat(v)
			if !ok || n < 0 || n != math.Trunc(n) {
				return Options{}, fmt.Errorf("max_tokens must be a non-negative integer, got %v", v)
			}
			opts.MaxTokens = int(n)
		case "temperature":
			t, ok := toFloat(v)
			if !ok || t < 0 || t > 1 {
				return Options{}, fmt.Errorf("temperature must be a number in [0,1], got %v", v)
			}
			opts.Temperature = &t
		default:
			if opts.Extra == nil {
				opts.Extra = make(map[string]any)
			}
			opts.Extra[k] = v
		}
	}
	return opts, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}

// ProviderConfig holds common configuration for backend adapters
type ProviderConfig struct {
	// APIKey for authentication. Empty for keyless backends.
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// Model overrides the adapter's default model
	Model string

	// Timeout for a single request
	Timeout time.Duration

	// Additional headers sent with every request
	Headers map[string]string
}

// WithDefaults fills empty fields from the adapter's defaults.
func (c ProviderConfig) WithDefaults(baseURL, model string, timeout time.Duration) ProviderConfig {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.Timeout <= 0 {
		c.Timeout = timeout
	}
	return c
}
