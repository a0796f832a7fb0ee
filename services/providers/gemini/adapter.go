package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/upb/llm-router/services/providers"
)

const (
	defaultBaseURL     = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultModel       = "gemini-pro"
	defaultTimeout     = 60 * time.Second
	defaultMaxTokens   = 1024
	defaultTemperature = 0.7
)

// Adapter implements providers.Provider for Google's Gemini REST API
type Adapter struct {
	config     providers.ProviderConfig
	httpClient *providers.Handle[*http.Client]
}

// NewAdapter creates a new Gemini adapter
func NewAdapter(config providers.ProviderConfig) *Adapter {
	a := &Adapter{
		config: config.WithDefaults(defaultBaseURL, defaultModel, defaultTimeout),
	}
	a.httpClient = providers.NewHandle(a.buildClient)
	return a
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return "gemini"
}

// ModelID returns the configured model
func (a *Adapter) ModelID() string {
	return a.config.Model
}

// EnsureReady builds the HTTP client once
func (a *Adapter) EnsureReady(ctx context.Context) error {
	_, err := a.httpClient.Get(ctx)
	return err
}

// Generate calls generateContent with prompt as a single user turn
func (a *Adapter) Generate(ctx context.Context, prompt string, opts providers.Options) providers.Outcome {
	startTime := time.Now()

	client, err := a.httpClient.Get(ctx)
	if err != nil {
		return providers.FailedOutcome(a.ModelID(), startTime, err)
	}

	temperature := opts.TemperatureOr(defaultTemperature)
	req := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: &generationConfig{
			MaxOutputTokens: opts.MaxTokensOr(defaultMaxTokens),
			Temperature:     &temperature,
		},
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent", strings.TrimRight(a.config.BaseURL, "/"), a.config.Model)

	status, body, err := providers.PostJSON(ctx, client, a.Name(), endpoint, a.headers(), req)
	if err != nil {
		return providers.FailedOutcome(a.ModelID(), startTime, err)
	}

	// Handle error responses
	if !providers.IsSuccessStatus(status) {
		return providers.FailedOutcome(a.ModelID(), startTime, providers.APIError(a.Name(), status, providers.ErrorDetail(body)))
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return providers.FailedOutcome(a.ModelID(), startTime, providers.Malformed(a.Name(), err))
	}

	text, err := resp.text()
	if err != nil {
		return providers.FailedOutcome(a.ModelID(), startTime, providers.Malformed(a.Name(), err))
	}

	tokens := -1
	if resp.UsageMetadata.TotalTokenCount > 0 {
		tokens = resp.UsageMetadata.TotalTokenCount
	}
	return providers.SucceededOutcome(a.ModelID(), text, startTime, tokens)
}

// headers carries the key in x-goog-api-key so it never appears in a URL
func (a *Adapter) headers() map[string]string {
	h := make(map[string]string, len(a.config.Headers)+1)
	for k, v := range a.config.Headers {
		h[k] = v
	}
	h["x-goog-api-key"] = a.config.APIKey
	return h
}

func (a *Adapter) buildClient(context.Context) (*http.Client, error) {
	if a.config.APIKey == "" {
		return nil, providers.MissingCredential(a.Name(), "Gemini")
	}
	return &http.Client{Timeout: a.config.Timeout}, nil
}

// Gemini-specific request/response types

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (r *generateResponse) text() (string, error) {
	if len(r.Candidates) == 0 {
		if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked: %s", r.PromptFeedback.BlockReason)
		}
		return "", errors.New("no candidates in response")
	}

	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	if b.Len() == 0 {
		return "", errors.New("no content in response")
	}
	return b.String(), nil
}
