// Package genai answers questions online through LLM APIs when the offline
// knowledge base has no match.
//
// Gemini uses google.golang.org/genai; Groq and Cerebras use the
// OpenAI-compatible API through github.com/openai/openai-go/v3.
//
// Failures fall back in three layers: the same model is retried with
// backoff, then the next model of the provider, then the next provider.
package genai

import (
	"context"
	"errors"
	"time"
)

// Provider represents an LLM provider.
type Provider string

const (
	ProviderGemini   Provider = "gemini"
	ProviderGroq     Provider = "groq"
	ProviderCerebras Provider = "cerebras"
)

// ProviderEndpoint holds the base URL of each OpenAI-compatible provider.
var ProviderEndpoint = map[Provider]string{
	ProviderGroq:     "https://api.groq.com/openai/v1/",
	ProviderCerebras: "https://api.cerebras.ai/v1/",
}

// IsOpenAICompatible returns true if the provider uses OpenAI-compatible API.
func (p Provider) IsOpenAICompatible() bool {
	_, ok := ProviderEndpoint[p]
	return ok
}

// String returns the string representation of the provider.
func (p Provider) String() string {
	return string(p)
}

// ErrEmptyAnswer is returned when a provider responds without any text.
var ErrEmptyAnswer = errors.New("genai: empty answer")

// Answer is an online answer.
type Answer struct {
	Text     string
	Provider Provider
	Model    string
}

// Answerer produces an online answer for a free-form question.
type Answerer interface {
	Answer(ctx context.Context, question string) (*Answer, error)
	Provider() Provider
	Close() error
}

// RetryConfig defines retry behavior for LLM API calls (full-jitter backoff).
type RetryConfig struct {
	MaxAttempts  int // including the first attempt
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// ProviderConfig holds configuration for a single LLM provider.
type ProviderConfig struct {
	APIKey string
	// Models is tried in order; empty means the provider default chain.
	Models []string
}

// LLMConfig holds configuration for all LLM providers.
type LLMConfig struct {
	Providers   []Provider
	Gemini      ProviderConfig
	Groq        ProviderConfig
	Cerebras    ProviderConfig
	RetryConfig RetryConfig
	// AttemptTimeout bounds a single provider call (0 = caller deadline only).
	AttemptTimeout time.Duration
}

// Default model chains, primary first.
var (
	DefaultGeminiModels   = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite"}
	DefaultGroqModels     = []string{"llama-3.3-70b-versatile", "llama-3.1-8b-instant"}
	DefaultCerebrasModels = []string{"llama-3.3-70b", "llama-3.1-8b"}

	DefaultProviders = []Provider{ProviderGemini, ProviderGroq, ProviderCerebras}
)

// Retry configuration defaults
const (
	DefaultMaxRetryAttempts  = 2
	DefaultInitialRetryDelay = 500 * time.Millisecond
	DefaultMaxRetryDelay     = 3 * time.Second
)

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  DefaultMaxRetryAttempts,
		InitialDelay: DefaultInitialRetryDelay,
		MaxDelay:     DefaultMaxRetryDelay,
	}
}

// DefaultLLMConfig returns the provider order and model chains without keys.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Providers:   DefaultProviders,
		Gemini:      ProviderConfig{Models: DefaultGeminiModels},
		Groq:        ProviderConfig{Models: DefaultGroqModels},
		Cerebras:    ProviderConfig{Models: DefaultCerebrasModels},
		RetryConfig: DefaultRetryConfig(),
	}
}

// HasAnyProvider returns true if at least one provider is configured.
func (c *LLMConfig) HasAnyProvider() bool {
	return c.Gemini.APIKey != "" || c.Groq.APIKey != "" || c.Cerebras.APIKey != ""
}

// ProviderConfig returns the configuration for p, or nil for unknown providers.
func (c *LLMConfig) ProviderConfig(p Provider) *ProviderConfig {
	switch p {
	case ProviderGemini:
		return &c.Gemini
	case ProviderGroq:
		return &c.Groq
	case ProviderCerebras:
		return &c.Cerebras
	default:
		return nil
	}
}

// ConfiguredProviders returns the providers with API keys, in c.Providers order.
func (c *LLMConfig) ConfiguredProviders() []Provider {
	result := make([]Provider, 0, len(c.Providers))
	for _, p := range c.Providers {
		if pc := c.ProviderConfig(p); pc != nil && pc.APIKey != "" {
			result = append(result, p)
		}
	}
	return result
}

// ModelsFor returns the model chain for p, falling back to the defaults.
func (c *LLMConfig) ModelsFor(p Provider) []string {
	if pc := c.ProviderConfig(p); pc != nil && len(pc.Models) > 0 {
		return pc.Models
	}
	switch p {
	case ProviderGemini:
		return DefaultGeminiModels
	case ProviderGroq:
		return DefaultGroqModels
	case ProviderCerebras:
		return DefaultCerebrasModels
	default:
		return nil
	}
}
