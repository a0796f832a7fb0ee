package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeUnavailable ErrorType = "unavailable"
	ErrorTypeTimeout     ErrorType = "timeout"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same type
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Sentinel domain errors. Match with errors.Is; never mutate them, build
// a fresh error with From when a message or details are needed.
var (
	ErrProviderNotFound = NewDomainError(ErrorTypeNotFound, "provider not registered", nil)
	ErrUseCaseNotFound  = NewDomainError(ErrorTypeNotFound, "unknown use case", nil)

	ErrInvalidInput   = NewDomainError(ErrorTypeValidation, "invalid query request", nil)
	ErrEmptyPrompt    = NewDomainError(ErrorTypeValidation, "prompt cannot be empty", nil)
	ErrInvalidOptions = NewDomainError(ErrorTypeValidation, "invalid generation options", nil)
	ErrInvalidMode    = NewDomainError(ErrorTypeValidation, "mode must be best or compare", nil)
	ErrPromptRejected = NewDomainError(ErrorTypeValidation, "prompt rejected by screening", nil)

	ErrNoProviders        = NewDomainError(ErrorTypeUnavailable, "no providers registered", nil)
	ErrMetricsUnavailable = NewDomainError(ErrorTypeUnavailable, "metrics unavailable", nil)

	ErrDispatchTimeout = NewDomainError(ErrorTypeTimeout, "dispatch deadline exceeded", nil)
)

// From builds a fresh error of the sentinel's type. An empty message keeps
// the sentinel's text.
func From(sentinel *DomainError, message string, cause error) *DomainError {
	if message == "" {
		message = sentinel.Message
	}
	return NewDomainError(sentinel.Type, message, cause)
}

func hasType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool { return hasType(err, ErrorTypeNotFound) }

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool { return hasType(err, ErrorTypeValidation) }

// IsUnavailableError checks if an error is an unavailable error
func IsUnavailableError(err error) bool { return hasType(err, ErrorTypeUnavailable) }

// IsTimeoutError checks if an error is a timeout error
func IsTimeoutError(err error) bool { return hasType(err, ErrorTypeTimeout) }

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// NewValidationError builds a validation error from sentinel carrying the
// offending field
func NewValidationError(sentinel *DomainError, field, message string) *DomainError {
	return From(sentinel, message, nil).WithDetail("field", field)
}

// NewNotFoundError builds a not found error from sentinel naming the
// missing resource
func NewNotFoundError(sentinel *DomainError, resource, name string) *DomainError {
	return From(sentinel, fmt.Sprintf("%s %q not found", resource, name), nil).
		WithDetail(resource, name)
}
