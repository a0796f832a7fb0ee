package inference

import (
	"github.com/google/uuid"

	"github.com/upb/llm-router/services/evaluation"
	"github.com/upb/llm-router/services/providers"
	"github.com/upb/llm-router/services/routing"
)

// Query modes accepted by POST /api/v1/query
const (
	ModeBest    = "best"
	ModeCompare = "compare"
)

// QueryRequest represents a prompt submitted by a caller
type QueryRequest struct {
	Prompt string `json:"prompt" validate:"required,max=32000"`

	// UseCase selects the waterfall for best mode. Defaults to general.
	UseCase string `json:"use_case,omitempty" validate:"omitempty,max=64"`

	// Mode is best (default) or compare, case-insensitive
	Mode string `json:"mode,omitempty"`

	// Options is the open generation option set (max_tokens, temperature, ...)
	Options map[string]any `json:"options,omitempty"`
}

// BestResult is the answer of a use case waterfall
type BestResult struct {
	ID          uuid.UUID             `json:"id"`
	UseCase     routing.UseCase       `json:"use_case"`
	Provider    string                `json:"provider,omitempty"`
	Outcome     providers.Outcome     `json:"outcome"`
	Evaluation  evaluation.Evaluation `json:"evaluation"`
	Explanation string                `json:"explanation"`
	Attempts    []routing.Attempt     `json:"attempts,omitempty"`
	Cached      bool                  `json:"cached"`
}

// CompareResult holds every provider's outcome and the comparison report
type CompareResult struct {
	ID       uuid.UUID                    `json:"id"`
	Outcomes map[string]providers.Outcome `json:"outcomes"`
	Report   evaluation.ComparisonReport  `json:"report"`
}

// SingleResult is the answer of one named provider
type SingleResult struct {
	ID         uuid.UUID             `json:"id"`
	Provider   string                `json:"provider"`
	Outcome    providers.Outcome     `json:"outcome"`
	Evaluation evaluation.Evaluation `json:"evaluation"`
}

// ProviderInfo describes a registered provider
type ProviderInfo struct {
	Name    string `json:"name"`
	ModelID string `json:"model"`
}

// UseCaseInfo describes a use case and its waterfall
type UseCaseInfo struct {
	Name        routing.UseCase `json:"name"`
	Preferences []string        `json:"preferences"`
	Explanation string          `json:"explanation"`
}
