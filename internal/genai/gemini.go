package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

type geminiAnswerer struct {
	client *genai.Client
	model  string
}

func newGeminiAnswerer(ctx context.Context, apiKey, model string) (*geminiAnswerer, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if model == "" {
		model = DefaultGeminiModels[0]
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &geminiAnswerer{client: client, model: model}, nil
}

func (a *geminiAnswerer) Answer(ctx context.Context, question string) (*Answer, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](answerTemperature),
		MaxOutputTokens: answerMaxTokens,
	}

	start := time.Now()
	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(AnswerPrompt(question)), config)
	duration := time.Since(start)
	if err != nil {
		var apiErr genai.APIError
		status := 0
		if errors.As(err, &apiErr) {
			status = apiErr.Code
		}
		return nil, WrapError(fmt.Errorf("generate content (%s): %w", a.model, err), ProviderGemini, status)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, WrapError(ErrEmptyAnswer, ProviderGemini, 0)
	}

	if resp.UsageMetadata != nil {
		slog.DebugContext(ctx, "online answer completed",
			"provider", ProviderGemini,
			"model", a.model,
			"input_tokens", resp.UsageMetadata.PromptTokenCount,
			"output_tokens", resp.UsageMetadata.CandidatesTokenCount,
			"duration_ms", duration.Milliseconds())
	}

	return &Answer{Text: text, Provider: ProviderGemini, Model: a.model}, nil
}

func (a *geminiAnswerer) Provider() Provider {
	return ProviderGemini
}

func (a *geminiAnswerer) Close() error {
	return nil
}
