// Package handlers holds the thin HTTP adapters over the inference
// service. Handlers decode, call one service method and encode; every
// error goes through HandleServiceError.
package handlers

import (
	"context"

	"github.com/upb/llm-router/app"
	"github.com/upb/llm-router/internal/observability"
	"github.com/upb/llm-router/services/inference"
)

// InferenceService is the subset of inference.InferenceService the HTTP
// layer depends on
type InferenceService interface {
	Best(ctx context.Context, req inference.QueryRequest) (*inference.BestResult, error)
	Compare(ctx context.Context, req inference.QueryRequest) (*inference.CompareResult, error)
	Single(ctx context.Context, provider string, req inference.QueryRequest) (*inference.SingleResult, error)
	Providers() []inference.ProviderInfo
	UseCases() []inference.UseCaseInfo
	Explain(name string) (string, error)
	Stats(ctx context.Context) (map[string]observability.ProviderStats, error)
}

// ReadinessChecker reports dependency state for /readyz
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) app.Readiness
}

var (
	_ InferenceService = (*inference.InferenceService)(nil)
	_ ReadinessChecker = (*app.Dependencies)(nil)
)
