package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/upb/llm-router/app"
	"github.com/upb/llm-router/internal/observability"
	"github.com/upb/llm-router/services/inference"
)

// MockInferenceService is a mock implementation of InferenceService
type MockInferenceService struct {
	mock.Mock
}

func (m *MockInferenceService) Best(ctx context.Context, req inference.QueryRequest) (*inference.BestResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inference.BestResult), args.Error(1)
}

func (m *MockInferenceService) Compare(ctx context.Context, req inference.QueryRequest) (*inference.CompareResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inference.CompareResult), args.Error(1)
}

func (m *MockInferenceService) Single(ctx context.Context, provider string, req inference.QueryRequest) (*inference.SingleResult, error) {
	args := m.Called(ctx, provider, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inference.SingleResult), args.Error(1)
}

func (m *MockInferenceService) Providers() []inference.ProviderInfo {
	args := m.Called()
	return args.Get(0).([]inference.ProviderInfo)
}

func (m *MockInferenceService) UseCases() []inference.UseCaseInfo {
	args := m.Called()
	return args.Get(0).([]inference.UseCaseInfo)
}

func (m *MockInferenceService) Explain(name string) (string, error) {
	args := m.Called(name)
	return args.String(0), args.Error(1)
}

func (m *MockInferenceService) Stats(ctx context.Context) (map[string]observability.ProviderStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]observability.ProviderStats), args.Error(1)
}

type stubChecker app.Readiness

func (s stubChecker) CheckReadiness(context.Context) app.Readiness { return app.Readiness(s) }
