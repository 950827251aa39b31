package llm

import (
	"errors"
	"net/http"
	"time"
)

// Error represents a provider-neutral LLM error.
type Error struct {
	Type        ErrorType
	Message     string
	Retryable   bool
	RetryAfter  *time.Duration
	StatusCode  int
	Body        string // Raw response body for transport errors, if available
	ProviderErr error  // Original provider-specific error
}

// ErrorType represents the category of error.
type ErrorType string

const (
	// ErrorTypeTransport covers non-2xx HTTP responses and network-level
	// failures. Transport errors are fatal for the current request and are
	// the only class surfaced to the user.
	ErrorTypeTransport      ErrorType = "transport"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeProvider       ErrorType = "provider"
	ErrorTypeTimeout        ErrorType = "timeout"
	ErrorTypeUnknown        ErrorType = "unknown"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ProviderErr != nil {
		return e.Message + ": " + e.ProviderErr.Error()
	}
	return e.Message
}

// Unwrap returns the underlying provider error.
func (e *Error) Unwrap() error {
	return e.ProviderErr
}

// IsTransportError checks if an error is a transport error.
func IsTransportError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeTransport
	}
	return false
}

// IsRateLimitError checks if an error is a rate limit error.
func IsRateLimitError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeRateLimit
	}
	return false
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// ExtractRetryAfter extracts the retry-after duration from an error.
func ExtractRetryAfter(err error) *time.Duration {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.RetryAfter
	}
	return nil
}

// NewTransportError creates a new transport error from an HTTP status and body.
// Rate-limit responses (429) are classified separately so the retry handler
// can pick them up; 5xx responses are retryable transport errors.
func NewTransportError(message string, statusCode int, body string, retryAfter *time.Duration) *Error {
	if statusCode == http.StatusTooManyRequests {
		return &Error{
			Type:       ErrorTypeRateLimit,
			Message:    message,
			Retryable:  true,
			RetryAfter: retryAfter,
			StatusCode: statusCode,
			Body:       body,
		}
	}
	return &Error{
		Type:       ErrorTypeTransport,
		Message:    message,
		Retryable:  statusCode >= 500,
		StatusCode: statusCode,
		Body:       body,
	}
}

// NewNetworkError creates a transport error for a request that failed before
// an HTTP status was received.
func NewNetworkError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeTransport,
		Message:     message,
		Retryable:   true,
		ProviderErr: providerErr,
	}
}

// NewRateLimitError creates a new rate limit error.
func NewRateLimitError(message string, retryAfter *time.Duration, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeRateLimit,
		Message:     message,
		Retryable:   true,
		RetryAfter:  retryAfter,
		ProviderErr: providerErr,
	}
}

// NewProviderError creates a new provider error.
func NewProviderError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeProvider,
		Message:     message,
		Retryable:   false,
		ProviderErr: providerErr,
	}
}
