package genai

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrorAction defines the action to take based on error type.
type ErrorAction int

const (
	// ActionRetry retries the same model after a backoff.
	ActionRetry ErrorAction = iota
	// ActionFallback moves on to the next model or provider.
	ActionFallback
	// ActionFail stops the current model without retrying.
	ActionFail
)

// String returns a human-readable string for the error action.
func (a ErrorAction) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionFallback:
		return "fallback"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// LLMError wraps a provider error with what retry and fallback need.
type LLMError struct {
	Err        error
	StatusCode int
	Provider   Provider
	Retryable  bool
	RetryAfter time.Duration // server-requested delay, 0 if none
}

// Error implements the error interface.
func (e *LLMError) Error() string {
	if e.StatusCode > 0 {
		return e.Err.Error() + " (status: " + strconv.Itoa(e.StatusCode) + ")"
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *LLMError) Unwrap() error {
	return e.Err
}

// ClassifyError maps an error to a retry, fallback, or fail action:
//   - transient errors (429, 5xx, timeouts, network) retry
//   - quota exhaustion and empty answers fall back
//   - other client errors (400, 401, 403, 404, 422) fail
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionFail
	}

	if errors.Is(err, context.Canceled) {
		return ActionFail
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ActionRetry
	}
	if errors.Is(err, ErrEmptyAnswer) {
		return ActionFallback
	}

	errStr := strings.ToLower(err.Error())

	// Quota exhaustion will not clear on retry.
	if containsAny(errStr, "quota", "daily limit", "monthly limit", "billing") {
		return ActionFallback
	}

	var llmErr *LLMError
	if errors.As(err, &llmErr) && llmErr.StatusCode > 0 {
		return classifyStatusCode(llmErr.StatusCode)
	}

	if containsAny(errStr, "rate limit", "too many requests", "resource_exhausted", "429") {
		return ActionRetry
	}
	if containsAny(errStr, "unavailable", "503", "502", "500", "504",
		"internal server error", "bad gateway", "gateway timeout", "overloaded", "capacity") {
		return ActionRetry
	}
	if containsAny(errStr, "408", "409", "timeout", "deadline", "connection") {
		return ActionRetry
	}
	if containsAny(errStr, "400", "invalid", "bad request", "malformed",
		"401", "unauthorized", "unauthenticated",
		"403", "forbidden", "permission denied",
		"404", "not found", "422", "unprocessable") {
		return ActionFail
	}

	// Unknown errors are retried once more.
	return ActionRetry
}

// classifyStatusCode determines action based on HTTP status code.
func classifyStatusCode(statusCode int) ErrorAction {
	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout,
		statusCode == http.StatusConflict,
		statusCode >= 500 && statusCode < 600:
		return ActionRetry
	case statusCode >= 400 && statusCode < 500:
		return ActionFail
	default:
		return ActionRetry
	}
}

// ParseRetryAfter reads retry-after-ms, retry-after (seconds or HTTP date),
// or Groq's x-ratelimit-reset-tokens. Returns 0 if none is usable.
func ParseRetryAfter(headers http.Header) time.Duration {
	if msStr := headers.Get("retry-after-ms"); msStr != "" {
		if ms, err := strconv.Atoi(msStr); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}

	if secStr := headers.Get("retry-after"); secStr != "" {
		if sec, err := strconv.Atoi(secStr); err == nil && sec > 0 {
			return time.Duration(sec) * time.Second
		}
		if t, err := http.ParseTime(secStr); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
		}
	}

	if resetStr := headers.Get("x-ratelimit-reset-tokens"); resetStr != "" {
		if d, err := time.ParseDuration(resetStr); err == nil {
			return d
		}
	}

	return 0
}

// containsAny checks if s contains any of the substrings.
func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// WrapError wraps an error with provider and status code information.
func WrapError(err error, provider Provider, statusCode int) error {
	if err == nil {
		return nil
	}
	e := &LLMError{Err: err, StatusCode: statusCode, Provider: provider}
	e.Retryable = ClassifyError(e) == ActionRetry
	return e
}
