package llm

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestNewTransportError_Classification(t *testing.T) {
	retryAfter := 30 * time.Second

	rateLimited := NewTransportError("too many requests", 429, "", &retryAfter)
	if !IsRateLimitError(rateLimited) {
		t.Error("429 should classify as rate limit")
	}
	if !IsRetryableError(rateLimited) {
		t.Error("rate limit errors should be retryable")
	}
	if got := ExtractRetryAfter(rateLimited); got == nil || *got != retryAfter {
		t.Errorf("ExtractRetryAfter = %v, want %v", got, retryAfter)
	}

	serverErr := NewTransportError("bad gateway", 502, "upstream down", nil)
	if !IsTransportError(serverErr) {
		t.Error("502 should classify as transport")
	}
	if !IsRetryableError(serverErr) {
		t.Error("5xx errors should be retryable")
	}
	if serverErr.Body != "upstream down" {
		t.Errorf("Body = %q", serverErr.Body)
	}

	clientErr := NewTransportError("bad request", 400, "", nil)
	if IsRetryableError(clientErr) {
		t.Error("4xx errors (other than 429) should not be retryable")
	}
	if !IsTransportError(clientErr) {
		t.Error("400 should still classify as transport")
	}
}

func TestNewNetworkError(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewNetworkError("request failed", cause)

	if !IsTransportError(err) {
		t.Error("network failures should classify as transport")
	}
	if !IsRetryableError(err) {
		t.Error("network failures should be retryable")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should unwrap")
	}
}

func TestIsRateLimitError(t *testing.T) {
	err := NewRateLimitError("rate limit exceeded", nil, nil)
	if !IsRateLimitError(err) {
		t.Error("Expected IsRateLimitError to return true for rate limit error")
	}

	regularErr := NewProviderError("some error", nil)
	if IsRateLimitError(regularErr) {
		t.Error("Expected IsRateLimitError to return false for non-rate-limit error")
	}
	if IsRateLimitError(fmt.Errorf("plain error")) {
		t.Error("Expected IsRateLimitError to return false for plain error")
	}
}

func TestIsRetryableError(t *testing.T) {
	retryableErr := NewRateLimitError("rate limit", nil, nil)
	if !IsRetryableError(retryableErr) {
		t.Error("Expected IsRetryableError to return true for retryable error")
	}

	nonRetryableErr := NewProviderError("some error", nil)
	if IsRetryableError(nonRetryableErr) {
		t.Error("Expected IsRetryableError to return false for non-retryable error")
	}
}

func TestExtractRetryAfter_NonLLMError(t *testing.T) {
	if got := ExtractRetryAfter(fmt.Errorf("plain error")); got != nil {
		t.Errorf("ExtractRetryAfter = %v, want nil", got)
	}
}

func TestError_MessageFormat(t *testing.T) {
	plain := NewTransportError("server error", 500, "", nil)
	if plain.Error() != "server error" {
		t.Errorf("Error() = %q", plain.Error())
	}

	wrapped := NewProviderError("decode failed", fmt.Errorf("unexpected token"))
	if wrapped.Error() != "decode failed: unexpected token" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}
