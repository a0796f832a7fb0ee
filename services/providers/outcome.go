package providers

import (
	"encoding/json"
	"errors"
	"time"
)

// Outcome is the standardized result of one generation attempt.
// It is successful iff Error is empty.
type Outcome struct {
	ModelID       string        `json:"model"`
	Content       string        `json:"content"`
	Latency       time.Duration `json:"-"`
	TokensUsed    *int          `json:"tokens_used,omitempty"`
	EstimatedCost float64       `json:"estimated_cost"`
	Error         string        `json:"error,omitempty"`

	// ErrorKind classifies Error. Empty on success.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

// Success reports whether the attempt produced content.
func (o Outcome) Success() bool {
	return o.Error == ""
}

// MarshalJSON adds the derived latency_ms and success fields.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type alias Outcome
	return json.Marshal(struct {
		alias
		LatencyMS int64 `json:"latency_ms"`
		Success   bool  `json:"success"`
	}{
		alias:     alias(o),
		LatencyMS: o.Latency.Milliseconds(),
		Success:   o.Success(),
	})
}

// SucceededOutcome builds a successful Outcome measured from start.
// A negative token count is treated as unreported.
func SucceededOutcome(modelID, content string, start time.Time, tokens int) Outcome {
	out := Outcome{
		ModelID: modelID,
		Content: content,
		Latency: since(start),
	}
	if tokens >= 0 {
		t := tokens
		out.TokensUsed = &t
	}
	return out
}

// FailedOutcome converts err into a failed Outcome measured from start.
// A zero start yields zero latency.
func FailedOutcome(modelID string, start time.Time, err error) Outcome {
	if err == nil {
		err = errors.New("unknown failure")
	}
	return Outcome{
		ModelID:   modelID,
		Latency:   since(start),
		Error:     err.Error(),
		ErrorKind: KindOf(err),
	}
}

func since(start time.Time) time.Duration {
	if start.IsZero() {
		return 0
	}
	if d := time.Since(start); d > 0 {
		return d
	}
	return 0
}
