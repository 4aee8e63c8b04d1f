// Package errors provides domain-specific error types and sentinel errors
// shared across the bot.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors. Check them with errors.Is.
var (
	// ErrNotFound indicates a requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrSourceNotFound indicates a knowledge-base source is absent.
	// Loaders return it so the next strategy can be tried.
	ErrSourceNotFound = errors.New("knowledge base source not found")

	// ErrNoKnowledgeBase indicates that no loader strategy found a source.
	ErrNoKnowledgeBase = errors.New("no knowledge base source available")

	// ErrEmptyKnowledgeBase indicates a source was found but held no entries.
	ErrEmptyKnowledgeBase = errors.New("knowledge base has no entries")

	// ErrRateLimitExceeded indicates rate limit has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidInput indicates user provided invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLLMUnavailable indicates no generative provider is configured or reachable.
	ErrLLMUnavailable = errors.New("llm unavailable")
)

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// SourceError reports a knowledge-base source that exists but could not be used.
type SourceError struct {
	Loader string
	Path   string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("knowledge base source %s (%s): %v", e.Loader, e.Path, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError creates a new source error.
func NewSourceError(loader, path string, err error) *SourceError {
	return &SourceError{
		Loader: loader,
		Path:   path,
		Err:    err,
	}
}
