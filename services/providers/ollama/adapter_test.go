package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/llm-router/services/providers"
)

func TestAdapter_Generate(t *testing.T) {
	var got generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(generateResponse{
			Model:           "llama3",
			Response:        "Local answer",
			Done:            true,
			PromptEvalCount: 4,
			EvalCount:       6,
		})
	}))
	defer server.Close()

	a := NewAdapter(providers.ProviderConfig{BaseURL: server.URL})
	out := a.Generate(context.Background(), "ping", providers.Options{})

	require.True(t, out.Success(), out.Error)
	assert.Equal(t, "Local answer", out.Content)
	assert.Equal(t, "ollama/llama3", out.ModelID)
	require.NotNil(t, out.TokensUsed)
	assert.Equal(t, 10, *out.TokensUsed)

	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, "ping", got.Prompt)
	assert.False(t, got.Stream)
	assert.Nil(t, got.Options)
}

func TestAdapter_PassesOptions(t *testing.T) {
	var got generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response": "ok", "done": true}`))
	}))
	defer server.Close()

	a := NewAdapter(providers.ProviderConfig{BaseURL: server.URL, Model: "mistral"})
	out := a.Generate(context.Background(), "ping", providers.Options{MaxTokens: 32}.WithTemperature(0.1))

	require.True(t, out.Success(), out.Error)
	assert.Equal(t, "ollama/mistral", out.ModelID)
	assert.Nil(t, out.TokensUsed)
	require.NotNil(t, got.Options)
	assert.Equal(t, 32, got.Options.NumPredict)
	require.NotNil(t, got.Options.Temperature)
	assert.Equal(t, 0.1, *got.Options.Temperature)
}

func TestAdapter_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": "model 'llama3' not found"}`))
	}))
	defer server.Close()

	a := NewAdapter(providers.ProviderConfig{BaseURL: server.URL})
	out := a.Generate(context.Background(), "ping", providers.Options{})

	assert.False(t, out.Success())
	assert.Equal(t, "Ollama API error: 404: model 'llama3' not found", out.Error)
}

func TestAdapter_NotRunning(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := server.URL
	server.Close()

	a := NewAdapter(providers.ProviderConfig{BaseURL: baseURL})
	out := a.Generate(context.Background(), "ping", providers.Options{})

	assert.False(t, out.Success())
	assert.Equal(t, connectHint, out.Error)
	assert.Equal(t, providers.KindDependencyUnavailable, out.ErrorKind)
	assert.Empty(t, out.Content)
}

func TestAdapter_EnsureReadyNeedsNoKey(t *testing.T) {
	a := NewAdapter(providers.ProviderConfig{})
	assert.NoError(t, a.EnsureReady(context.Background()))
	assert.Equal(t, DefaultBaseURL, a.config.BaseURL)
}
