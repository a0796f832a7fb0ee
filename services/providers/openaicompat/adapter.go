// Package openaicompat adapts backends that speak the OpenAI chat
// completions protocol (Groq, OpenRouter) through the official SDK.
package openaicompat

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/upb/llm-router/services/providers"
)

// Backend describes one OpenAI-compatible service and its defaults.
type Backend struct {
	// Name is the registration name, e.g. "groq"
	Name string

	// Label prefixes the missing-credential message
	Label string

	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Headers     map[string]string
}

// Groq serves Llama 3 on the free tier.
var Groq = Backend{
	Name:        "groq",
	Label:       "Groq",
	BaseURL:     "https://api.groq.com/openai/v1",
	Model:       "llama3-8b-8192",
	MaxTokens:   1024,
	Temperature: 0.7,
	Timeout:     60 * time.Second,
}

// OpenRouter routes to a free Llama 3 instruct model.
var OpenRouter = Backend{
	Name:        "openrouter",
	Label:       "OpenRouter",
	BaseURL:     "https://openrouter.ai/api/v1",
	Model:       "meta-llama/llama-3-8b-instruct:free",
	MaxTokens:   1024,
	Temperature: 0.7,
	Timeout:     60 * time.Second,
	Headers: map[string]string{
		"HTTP-Referer": "http://localhost:8080",
		"X-Title":      "Multi-LLM System",
	},
}

// Adapter implements providers.Provider for an OpenAI-compatible backend
type Adapter struct {
	backend Backend
	config  providers.ProviderConfig
	client  *providers.Handle[*openai.Client]
}

// New creates an adapter for backend. Empty config fields take the
// backend's defaults.
func New(backend Backend, config providers.ProviderConfig) *Adapter {
	config = config.WithDefaults(backend.BaseURL, backend.Model, backend.Timeout)

	a := &Adapter{
		backend: backend,
		config:  config,
	}
	a.client = providers.NewHandle(a.buildClient)
	return a
}

// NewGroq creates the Groq adapter
func NewGroq(config providers.ProviderConfig) *Adapter {
	return New(Groq, config)
}

// NewOpenRouter creates the OpenRouter adapter
func NewOpenRouter(config providers.ProviderConfig) *Adapter {
	return New(OpenRouter, config)
}

// Name returns the registration name
func (a *Adapter) Name() string {
	return a.backend.Name
}

// ModelID returns the configured model
func (a *Adapter) ModelID() string {
	return a.config.Model
}

// EnsureReady builds the SDK client once.
func (a *Adapter) EnsureReady(ctx context.Context) error {
	_, err := a.client.Get(ctx)
	return err
}

// Generate sends prompt as a single user message
func (a *Adapter) Generate(ctx context.Context, prompt string, opts providers.Options) providers.Outcome {
	start := time.Now()

	client, err := a.client.Get(ctx)
	if err != nil {
		return providers.FailedOutcome(a.ModelID(), start, err)
	}

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.config.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(prompt),
					},
				},
			},
		},
		MaxTokens:   openai.Int(int64(opts.MaxTokensOr(a.backend.MaxTokens))),
		Temperature: openai.Float(opts.TemperatureOr(a.backend.Temperature)),
	})
	if err != nil {
		return providers.FailedOutcome(a.ModelID(), start, a.translateError(err))
	}

	if len(resp.Choices) == 0 {
		return providers.FailedOutcome(a.ModelID(), start, providers.Malformed(a.Name(), errors.New("no choices returned")))
	}

	tokens := -1
	if resp.Usage.TotalTokens > 0 {
		tokens = int(resp.Usage.TotalTokens)
	}
	return providers.SucceededOutcome(a.ModelID(), resp.Choices[0].Message.Content, start, tokens)
}

func (a *Adapter) buildClient(context.Context) (*openai.Client, error) {
	if a.config.APIKey == "" {
		return nil, providers.MissingCredential(a.Name(), a.backend.Label)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(a.config.APIKey),
		option.WithBaseURL(a.config.BaseURL),
		option.WithHTTPClient(&http.Client{Timeout: a.config.Timeout}),
		// one HTTP request per Generate; the waterfall is the retry policy
		option.WithMaxRetries(0),
	}
	for k, v := range a.backend.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	for k, v := range a.config.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	cli := openai.NewClient(opts...)
	return &cli, nil
}

// translateError maps SDK errors onto the provider error taxonomy
func (a *Adapter) translateError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		detail := apiErr.Message
		if detail == "" {
			detail = http.StatusText(apiErr.StatusCode)
		}
		return providers.APIError(a.Name(), apiErr.StatusCode, detail)
	}
	return providers.RequestFailed(a.Name(), err)
}
