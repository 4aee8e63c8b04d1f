package genai

import (
	"context"
	"log/slog"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/metrics"
)

// CreateAnswerer builds the fallback chain: every model of the first
// configured provider, then every model of the next, and so on.
// Returns (nil, nil) when no provider has an API key.
func CreateAnswerer(ctx context.Context, cfg LLMConfig, m *metrics.Metrics) (*FallbackAnswerer, error) {
	var chain []Answerer

	for _, provider := range cfg.ConfiguredProviders() {
		apiKey := cfg.ProviderConfig(provider).APIKey
		for _, model := range cfg.ModelsFor(provider) {
			var (
				a   Answerer
				err error
			)
			if provider == ProviderGemini {
				a, err = newGeminiAnswerer(ctx, apiKey, model)
			} else {
				a, err = newOpenAIAnswerer(provider, apiKey, model)
			}
			if err != nil {
				slog.WarnContext(ctx, "failed to create online answerer",
					"provider", provider, "model", model, "error", err)
				continue
			}
			chain = append(chain, a)
		}
	}

	if len(chain) == 0 {
		slog.InfoContext(ctx, "no LLM provider configured for online answers")
		return nil, nil //nolint:nilnil // online answers are optional
	}

	slog.InfoContext(ctx, "online answers configured",
		"primary", chain[0].Provider(),
		"chainSize", len(chain))

	return NewFallbackAnswerer(cfg.RetryConfig, cfg.AttemptTimeout, m, chain...), nil
}
