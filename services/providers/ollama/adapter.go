// Package ollama adapts a local Ollama server. It needs no credential.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/upb/llm-router/services/providers"
)

const (
	// DefaultBaseURL is where a stock Ollama install listens.
	DefaultBaseURL = "http://localhost:11434"

	defaultModel   = "llama3"
	defaultTimeout = 120 * time.Second

	connectHint = "Cannot connect to Ollama. Is it running? Install from https://ollama.ai/"
)

// Adapter implements providers.Provider for Ollama's /api/generate
type Adapter struct {
	config     providers.ProviderConfig
	httpClient *providers.Handle[*http.Client]
}

// NewAdapter creates a new Ollama adapter
func NewAdapter(config providers.ProviderConfig) *Adapter {
	a := &Adapter{
		config: config.WithDefaults(DefaultBaseURL, defaultModel, defaultTimeout),
	}
	a.httpClient = providers.NewHandle(func(context.Context) (*http.Client, error) {
		return &http.Client{Timeout: a.config.Timeout}, nil
	})
	return a
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return "ollama"
}

// ModelID returns "ollama/<model>"
func (a *Adapter) ModelID() string {
	return "ollama/" + a.config.Model
}

// EnsureReady builds the HTTP client once
func (a *Adapter) EnsureReady(ctx context.Context) error {
	_, err := a.httpClient.Get(ctx)
	return err
}

// Generate runs a non-streaming completion on the local server
func (a *Adapter) Generate(ctx context.Context, prompt string, opts providers.Options) providers.Outcome {
	startTime := time.Now()

	client, err := a.httpClient.Get(ctx)
	if err != nil {
		return providers.FailedOutcome(a.ModelID(), startTime, err)
	}

	req := generateRequest{
		Model:  a.config.Model,
		Prompt: prompt,
		Stream: false,
	}
	if opts.MaxTokens > 0 || opts.Temperature != nil {
		req.Options = &modelOptions{Temperature: opts.Temperature}
		if opts.MaxTokens > 0 {
			req.Options.NumPredict = opts.MaxTokens
		}
	}

	endpoint := strings.TrimRight(a.config.BaseURL, "/") + "/api/generate"
	status, body, err := providers.PostJSON(ctx, client, a.Name(), endpoint, a.config.Headers, req)
	if err != nil {
		return providers.FailedOutcome(a.ModelID(), startTime, a.translateTransport(err))
	}

	if status != http.StatusOK {
		var cause error
		if detail := providers.ErrorDetail(body); detail != "" {
			cause = errors.New(detail)
		}
		return providers.FailedOutcome(a.ModelID(), startTime,
			providers.NewProviderError(a.Name(), providers.KindBackend, fmt.Sprintf("Ollama API error: %d", status), status, status >= 500, cause))
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return providers.FailedOutcome(a.ModelID(), startTime, providers.Malformed(a.Name(), err))
	}

	tokens := -1
	if n := resp.PromptEvalCount + resp.EvalCount; n > 0 {
		tokens = n
	}
	return providers.SucceededOutcome(a.ModelID(), resp.Response, startTime, tokens)
}

// translateTransport turns a failed dial into the install hint
func (a *Adapter) translateTransport(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return providers.NewProviderError(a.Name(), providers.KindDependencyUnavailable, connectHint, 0, true, nil)
	}
	return err
}

type generateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options *modelOptions `json:"options,omitempty"`
}

type modelOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}
