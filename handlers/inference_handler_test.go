package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/upb/llm-router/internal/observability"
	"github.com/upb/llm-router/services"
	"github.com/upb/llm-router/services/evaluation"
	"github.com/upb/llm-router/services/inference"
	"github.com/upb/llm-router/services/providers"
	"github.com/upb/llm-router/services/routing"
)

func newTestRouter(t *testing.T, svc InferenceService) http.Handler {
	t.Helper()
	h := NewInferenceHandler(svc, zaptest.NewLogger(t))

	r := chi.NewRouter()
	r.Post("/api/v1/query", h.HandleQuery)
	r.Post("/api/v1/query/{provider}", h.HandleQueryProvider)
	r.Get("/api/v1/providers", h.HandleProviders)
	r.Get("/api/v1/use-cases", h.HandleUseCases)
	r.Get("/api/v1/use-cases/{useCase}/explanation", h.HandleExplanation)
	r.Get("/api/v1/stats", h.HandleStats)
	return r
}

func serve(handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestHandleQuery_Best(t *testing.T) {
	svc := new(MockInferenceService)
	tokens := 42
	svc.On("Best", mock.Anything, inference.QueryRequest{Prompt: "What is aspirin?", UseCase: "healthcare", Mode: inference.ModeBest}).Return(&inference.BestResult{
		ID:       uuid.New(),
		UseCase:  routing.UseCaseHealthcare,
		Provider: "gemini",
		Outcome: providers.Outcome{
			ModelID:    "gemini-pro",
			Content:    "A pain reliever.",
			Latency:    1200 * time.Millisecond,
			TokensUsed: &tokens,
		},
		Evaluation:  evaluation.Evaluation{Model: "gemini-pro", Success: true, SpeedRating: evaluation.SpeedFast},
		Explanation: routing.Explanation(routing.UseCaseHealthcare),
	}, nil)

	w := serve(newTestRouter(t, svc), http.MethodPost, "/api/v1/query", `{"prompt":"What is aspirin?","use_case":"healthcare"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "gemini", data["provider"])
	assert.Equal(t, "healthcare", data["use_case"])
	assert.Equal(t, false, data["cached"])

	outcome := data["outcome"].(map[string]any)
	assert.Equal(t, "A pain reliever.", outcome["content"])
	assert.Equal(t, "gemini-pro", outcome["model"])
	assert.EqualValues(t, 1200, outcome["latency_ms"])
	assert.EqualValues(t, 42, outcome["tokens_used"])
	assert.Equal(t, true, outcome["success"])
	svc.AssertExpectations(t)
}

func TestHandleQuery_ModeCase(t *testing.T) {
	for _, mode := range []string{"BEST", " Best ", ""} {
		t.Run(mode, func(t *testing.T) {
			svc := new(MockInferenceService)
			svc.On("Best", mock.Anything, mock.MatchedBy(func(req inference.QueryRequest) bool {
				return req.Mode == inference.ModeBest
			})).Return(&inference.BestResult{UseCase: routing.UseCaseGeneral}, nil)

			body := fmt.Sprintf(`{"prompt":"hello","mode":%q}`, mode)
			w := serve(newTestRouter(t, svc), http.MethodPost, "/api/v1/query", body)

			assert.Equal(t, http.StatusOK, w.Code)
			svc.AssertExpectations(t)
			svc.AssertNotCalled(t, "Compare", mock.Anything, mock.Anything)
		})
	}
}

func TestHandleQuery_AllFailedIsStillOK(t *testing.T) {
	svc := new(MockInferenceService)
	svc.On("Best", mock.Anything, mock.Anything).Return(&inference.BestResult{
		UseCase: routing.UseCaseGeneral,
		Outcome: providers.Outcome{ModelID: routing.NoneModelID, Error: routing.ErrAllFailed},
	}, nil)

	w := serve(newTestRouter(t, svc), http.MethodPost, "/api/v1/query", `{"prompt":"hello"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	outcome := decodeBody(t, w)["data"].(map[string]any)["outcome"].(map[string]any)
	assert.Equal(t, "none", outcome["model"])
	assert.Equal(t, routing.ErrAllFailed, outcome["error"])
	assert.Equal(t, false, outcome["success"])
}

func TestHandleQuery_Compare(t *testing.T) {
	svc := new(MockInferenceService)
	svc.On("Compare", mock.Anything, mock.MatchedBy(func(req inference.QueryRequest) bool {
		return req.Mode == inference.ModeCompare && req.Options["temperature"] == 0.2
	})).Return(&inference.CompareResult{
		Outcomes: map[string]providers.Outcome{
			"groq":   {ModelID: "llama3-8b-8192", Content: "Hi."},
			"gemini": {ModelID: "gemini-pro", Error: "Gemini API key not provided"},
		},
		Report: evaluation.ComparisonReport{
			Order:            []string{"groq", "gemini"},
			TotalModels:      2,
			SuccessfulModels: 1,
			Fastest:          &evaluation.Fastest{Name: "groq", LatencySeconds: 0.31},
		},
	}, nil)

	w := serve(newTestRouter(t, svc), http.MethodPost, "/api/v1/query", `{"prompt":"hi","mode":"Compare","options":{"temperature":0.2}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Len(t, data["outcomes"], 2)

	report := data["report"].(map[string]any)
	assert.EqualValues(t, 2, report["total_models"])
	assert.EqualValues(t, 1, report["successful_models"])
	svc.AssertExpectations(t)
	svc.AssertNotCalled(t, "Best", mock.Anything, mock.Anything)
}

func TestHandleQuery_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		serviceErr error
		wantStatus int
		wantError  string
		wantInMsg  string
	}{
		{
			name:       "malformed json",
			body:       `{"prompt":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "bad_request",
			wantInMsg:  "invalid JSON body",
		},
		{
			name:       "trailing data",
			body:       `{"prompt":"a"} []`,
			wantStatus: http.StatusBadRequest,
			wantError:  "bad_request",
			wantInMsg:  "single JSON object",
		},
		{
			name:       "validation failure",
			body:       `{"prompt":"  "}`,
			serviceErr: services.NewValidationError(services.ErrEmptyPrompt, "prompt", "prompt cannot be empty"),
			wantStatus: http.StatusBadRequest,
			wantError:  "bad_request",
			wantInMsg:  "prompt cannot be empty",
		},
		{
			name:       "unknown use case",
			body:       `{"prompt":"hi","use_case":"gaming"}`,
			serviceErr: services.NewValidationError(services.ErrInvalidInput, "use_case", `unknown use case "gaming"`),
			wantStatus: http.StatusBadRequest,
			wantError:  "bad_request",
			wantInMsg:  "gaming",
		},
		{
			name:       "caller deadline",
			body:       `{"prompt":"hi"}`,
			serviceErr: services.From(services.ErrDispatchTimeout, "", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantError:  "gateway_timeout",
			wantInMsg:  "dispatch deadline exceeded",
		},
		{
			name:       "unexpected failure",
			body:       `{"prompt":"hi"}`,
			serviceErr: errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal_error",
			wantInMsg:  "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockInferenceService)
			if tt.serviceErr != nil {
				svc.On("Best", mock.Anything, mock.Anything).Return(nil, tt.serviceErr)
			}

			w := serve(newTestRouter(t, svc), http.MethodPost, "/api/v1/query", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, tt.wantError, body["error"])
			assert.Contains(t, body["message"], tt.wantInMsg)

			if tt.serviceErr == nil {
				svc.AssertNotCalled(t, "Best", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestHandleQueryProvider(t *testing.T) {
	t.Run("queries the named provider", func(t *testing.T) {
		svc := new(MockInferenceService)
		svc.On("Single", mock.Anything, "ollama", inference.QueryRequest{Prompt: "hi"}).Return(&inference.SingleResult{
			Provider: "ollama",
			Outcome:  providers.Outcome{ModelID: "ollama/llama3", Content: "Hello!"},
		}, nil)

		w := serve(newTestRouter(t, svc), http.MethodPost, "/api/v1/query/ollama", `{"prompt":"hi"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		data := decodeBody(t, w)["data"].(map[string]any)
		assert.Equal(t, "ollama", data["provider"])
		svc.AssertExpectations(t)
	})

	t.Run("unknown provider is 404", func(t *testing.T) {
		svc := new(MockInferenceService)
		svc.On("Single", mock.Anything, "mistral", mock.Anything).Return(nil, services.NewNotFoundError(services.ErrProviderNotFound, "provider", "mistral"))

		w := serve(newTestRouter(t, svc), http.MethodPost, "/api/v1/query/mistral", `{"prompt":"hi"}`)

		assert.Equal(t, http.StatusNotFound, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "not_found", body["error"])
		assert.Equal(t, `provider "mistral" not found`, body["message"])
	})
}

func TestHandleCatalog(t *testing.T) {
	svc := new(MockInferenceService)
	svc.On("Providers").Return([]inference.ProviderInfo{{Name: "ollama", ModelID: "ollama/llama3"}})
	svc.On("UseCases").Return([]inference.UseCaseInfo{{
		Name:        routing.UseCaseCostSensitive,
		Preferences: []string{"ollama", "groq", "openrouter"},
		Explanation: routing.Explanation(routing.UseCaseCostSensitive),
	}})
	router := newTestRouter(t, svc)

	w := serve(router, http.MethodGet, "/api/v1/providers", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[{"name":"ollama","model":"ollama/llama3"}]}`, w.Body.String())

	w = serve(router, http.MethodGet, "/api/v1/use-cases", "")
	assert.Equal(t, http.StatusOK, w.Code)
	useCases := decodeBody(t, w)["data"].([]any)
	require.Len(t, useCases, 1)
	assert.Equal(t, "cost_sensitive", useCases[0].(map[string]any)["name"])
}

func TestHandleExplanation(t *testing.T) {
	svc := new(MockInferenceService)
	svc.On("Explain", "healthcare").Return(routing.Explanation(routing.UseCaseHealthcare), nil)
	svc.On("Explain", "gaming").Return("", services.NewNotFoundError(services.ErrUseCaseNotFound, "use case", "gaming"))
	router := newTestRouter(t, svc)

	w := serve(router, http.MethodGet, "/api/v1/use-cases/healthcare/explanation", "")
	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "healthcare", data["use_case"])
	assert.Equal(t, routing.Explanation(routing.UseCaseHealthcare), data["explanation"])

	w = serve(router, http.MethodGet, "/api/v1/use-cases/gaming/explanation", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleStats(t *testing.T) {
	t.Run("returns per provider counters", func(t *testing.T) {
		svc := new(MockInferenceService)
		svc.On("Stats", mock.Anything).Return(map[string]observability.ProviderStats{
			"groq": {Requests: 3, Successes: 2, Failures: 1, AvgLatencyMS: 410},
		}, nil)

		w := serve(newTestRouter(t, svc), http.MethodGet, "/api/v1/stats", "")

		assert.Equal(t, http.StatusOK, w.Code)
		groq := decodeBody(t, w)["data"].(map[string]any)["groq"].(map[string]any)
		assert.EqualValues(t, 3, groq["requests"])
		assert.EqualValues(t, 410, groq["avg_latency_ms"])
	})

	t.Run("metrics store outage is 503", func(t *testing.T) {
		svc := new(MockInferenceService)
		svc.On("Stats", mock.Anything).Return(nil,
			services.From(services.ErrMetricsUnavailable, "", errors.New("redis: connection refused")))

		w := serve(newTestRouter(t, svc), http.MethodGet, "/api/v1/stats", "")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "service_unavailable", body["error"])
		assert.Equal(t, "metrics unavailable", body["message"])
	})
}
