package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType categorizes generation failures for retry classification.
// Types determine whether a failed job attempt is worth repeating.
type ErrorType string

const (
	// ErrorTypeTimeout indicates request timeout or deadline exceeded (retryable).
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeRateLimit indicates provider rate limiting (retryable).
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeNetwork indicates connectivity failure (retryable).
	ErrorTypeNetwork ErrorType = "network"

	// ErrorTypeProvider indicates the provider service is unavailable (retryable).
	ErrorTypeProvider ErrorType = "provider_unavailable"

	// ErrorTypeAuth indicates authentication failure (non-retryable).
	ErrorTypeAuth ErrorType = "authentication"

	// ErrorTypeValidation indicates a malformed request (non-retryable).
	ErrorTypeValidation ErrorType = "validation_failed"

	// ErrorTypeUnknown indicates an unclassified failure.
	ErrorTypeUnknown ErrorType = "unknown"
)

// Common generation errors.
var (
	// ErrEmptyPrompt indicates a generation request without a prompt.
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrEmptyResponse indicates the provider returned no content.
	ErrEmptyResponse = errors.New("empty provider response")

	// ErrInvalidResponse indicates the provider response could not be parsed.
	ErrInvalidResponse = errors.New("invalid provider response")
)

// ProviderError captures a structured failure from a model provider,
// including the HTTP status and a classified type used for retry
// decisions.
type ProviderError struct {
	Provider   string    `json:"provider"`
	StatusCode int       `json:"status_code"`
	Message    string    `json:"message"`
	Type       ErrorType `json:"type"`
}

// Error returns the formatted provider error with status context.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable reports whether the failure is transient. The orchestrator
// consults this through errors.As when deciding whether to re-attempt a
// job.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeRateLimit, ErrorTypeNetwork, ErrorTypeProvider:
		return true
	default:
		return false
	}
}

// ClassifyStatus maps an HTTP status code to an error type.
func ClassifyStatus(code int) ErrorType {
	switch {
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return ErrorTypeTimeout
	case code == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrorTypeAuth
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return ErrorTypeValidation
	case code >= 500:
		return ErrorTypeProvider
	default:
		return ErrorTypeUnknown
	}
}
