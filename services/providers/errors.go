package providers

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrorKind classifies why a generation attempt failed
type ErrorKind string

const (
	KindMissingCredential     ErrorKind = "missing_credential"
	KindDependencyUnavailable ErrorKind = "dependency_unavailable"
	KindTransport             ErrorKind = "transport"
	KindBackend               ErrorKind = "backend"
	KindMalformedResponse     ErrorKind = "malformed_response"
	KindInvocation            ErrorKind = "invocation"
	KindDeadline              ErrorKind = "deadline"
	KindExhausted             ErrorKind = "exhausted"
)

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Kind classifies the failure
	Kind ErrorKind

	// Message is the human-readable description
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider string, kind ErrorKind, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Kind:       kind,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// MissingCredential reports an absent API key, e.g. "Groq API key not provided".
func MissingCredential(provider, label string) *ProviderError {
	return NewProviderError(provider, KindMissingCredential, label+" API key not provided", 0, false, nil)
}

// RequestFailed wraps a transport-level fault. The query string of a
// *url.Error is dropped since backends may carry credentials there.
func RequestFailed(provider string, cause error) *ProviderError {
	return NewProviderError(provider, KindTransport, "Request failed", 0, true, redactURL(cause))
}

func redactURL(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	clean := stripURL(urlErr.URL)
	if clean == urlErr.URL {
		return err
	}
	if err == error(urlErr) {
		redacted := *urlErr
		redacted.URL = clean
		return &redacted
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), urlErr.URL, clean), err: err}
}

// stripURL drops user info, query and fragment
func stripURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexAny(raw, "?#"); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// APIError reports a non-success status with the backend's detail.
func APIError(provider string, status int, detail string) *ProviderError {
	retryable := status >= 500 || status == 429
	return NewProviderError(provider, KindBackend, fmt.Sprintf("API error: %d - %s", status, detail), status, retryable, nil)
}

// Malformed reports a payload that could not be mapped to content.
func Malformed(provider string, cause error) *ProviderError {
	return NewProviderError(provider, KindMalformedResponse, "Malformed response", 0, false, cause)
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// KindOf returns the ErrorKind carried by err, or KindBackend when err
// is not a ProviderError.
func KindOf(err error) ErrorKind {
	var provErr *ProviderError
	if errors.As(err, &provErr) && provErr.Kind != "" {
		return provErr.Kind
	}
	return KindBackend
}
