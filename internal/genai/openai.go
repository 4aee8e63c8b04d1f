package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

type openaiAnswerer struct {
	client   openai.Client
	model    string
	provider Provider
}

func newOpenAIAnswerer(provider Provider, apiKey, model string, opts ...option.RequestOption) (*openaiAnswerer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%s: api key is required", provider)
	}
	baseURL, ok := ProviderEndpoint[provider]
	if !ok {
		return nil, fmt.Errorf("unsupported OpenAI-compatible provider: %s", provider)
	}
	if model == "" {
		return nil, fmt.Errorf("%s: model is required", provider)
	}

	opts = append([]option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0), // retries are handled by the fallback chain
	}, opts...)

	return &openaiAnswerer{
		client:   openai.NewClient(opts...),
		model:    model,
		provider: provider,
	}, nil
}

func (a *openaiAnswerer) Answer(ctx context.Context, question string) (*Answer, error) {
	params := openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(AnswerPrompt(question)),
		},
		Temperature: openai.Float(answerTemperature),
		MaxTokens:   openai.Int(answerMaxTokens),
	}

	start := time.Now()
	resp, err := a.client.Chat.Completions.New(ctx, params)
	duration := time.Since(start)
	if err != nil {
		wrapped := fmt.Errorf("chat completion (%s): %w", a.model, err)
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			llmErr := &LLMError{Err: wrapped, StatusCode: apiErr.StatusCode, Provider: a.provider}
			if apiErr.Response != nil {
				llmErr.RetryAfter = ParseRetryAfter(apiErr.Response.Header)
			}
			llmErr.Retryable = ClassifyError(llmErr) == ActionRetry
			return nil, llmErr
		}
		return nil, WrapError(wrapped, a.provider, 0)
	}

	if len(resp.Choices) == 0 {
		return nil, WrapError(ErrEmptyAnswer, a.provider, 0)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return nil, WrapError(ErrEmptyAnswer, a.provider, 0)
	}

	slog.DebugContext(ctx, "online answer completed",
		"provider", a.provider,
		"model", a.model,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
		"duration_ms", duration.Milliseconds())

	return &Answer{Text: text, Provider: a.provider, Model: a.model}, nil
}

func (a *openaiAnswerer) Provider() Provider {
	return a.provider
}

func (a *openaiAnswerer) Close() error {
	return nil
}
