package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/upb/llm-router/services/providers"
)

const (
	defaultBaseURL     = "https://api-inference.huggingface.co/models"
	defaultModel       = "mistralai/Mistral-7B-Instruct-v0.1"
	defaultTimeout     = 60 * time.Second
	defaultMaxTokens   = 512
	defaultTemperature = 0.7
)

// Adapter implements providers.Provider for the Hugging Face Inference API
type Adapter struct {
	config     providers.ProviderConfig
	httpClient *providers.Handle[*http.Client]
}

// NewAdapter creates a new Hugging Face adapter
func NewAdapter(config providers.ProviderConfig) *Adapter {
	a := &Adapter{
		config: config.WithDefaults(defaultBaseURL, defaultModel, defaultTimeout),
	}
	a.httpClient = providers.NewHandle(a.buildClient)
	return a
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return "huggingface"
}

// ModelID returns the hosted model repository id
func (a *Adapter) ModelID() string {
	return a.config.Model
}

// EnsureReady builds the HTTP client once
func (a *Adapter) EnsureReady(ctx context.Context) error {
	_, err := a.httpClient.Get(ctx)
	return err
}

// Generate runs text-generation inference against the hosted model
func (a *Adapter) Generate(ctx context.Context, prompt string, opts providers.Options) providers.Outcome {
	startTime := time.Now()

	client, err := a.httpClient.Get(ctx)
	if err != nil {
		return providers.FailedOutcome(a.ModelID(), startTime, err)
	}

	req := inferenceRequest{
		Inputs: prompt,
		Parameters: parameters{
			MaxNewTokens:   opts.MaxTokensOr(defaultMaxTokens),
			Temperature:    opts.TemperatureOr(defaultTemperature),
			ReturnFullText: false,
		},
	}

	headers := map[string]string{"Authorization": "Bearer " + a.config.APIKey}
	for k, v := range a.config.Headers {
		headers[k] = v
	}

	endpoint := strings.TrimRight(a.config.BaseURL, "/") + "/" + a.config.Model
	status, body, err := providers.PostJSON(ctx, client, a.Name(), endpoint, headers, req)
	if err != nil {
		return providers.FailedOutcome(a.ModelID(), startTime, err)
	}

	if status != http.StatusOK {
		return providers.FailedOutcome(a.ModelID(), startTime, providers.APIError(a.Name(), status, providers.ErrorDetail(body)))
	}

	text, err := parseGenerated(body)
	if err != nil {
		return providers.FailedOutcome(a.ModelID(), startTime, providers.Malformed(a.Name(), err))
	}

	// The inference API does not report usage.
	return providers.SucceededOutcome(a.ModelID(), text, startTime, -1)
}

func (a *Adapter) buildClient(context.Context) (*http.Client, error) {
	if a.config.APIKey == "" {
		return nil, providers.MissingCredential(a.Name(), "HuggingFace")
	}
	return &http.Client{Timeout: a.config.Timeout}, nil
}

type inferenceRequest struct {
	Inputs     string     `json:"inputs"`
	Parameters parameters `json:"parameters"`
}

type parameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

type generation struct {
	GeneratedText *string `json:"generated_text"`
	Error         string  `json:"error"`
}

// parseGenerated accepts either a list of generations or a single object.
func parseGenerated(body []byte) (string, error) {
	var list []generation
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) == 0 || list[0].GeneratedText == nil {
			return "", errors.New("no generated_text in response")
		}
		return *list[0].GeneratedText, nil
	}

	var single generation
	if err := json.Unmarshal(body, &single); err != nil {
		return "", err
	}
	if single.Error != "" {
		return "", errors.New(single.Error)
	}
	if single.GeneratedText == nil {
		return "", errors.New("no generated_text in response")
	}
	return *single.GeneratedText, nil
}
