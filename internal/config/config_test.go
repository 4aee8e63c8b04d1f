package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv(EnvLineChannelAccessToken, "token")
	t.Setenv(EnvLineChannelSecret, "secret")
	t.Setenv(EnvDataDir, t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "10000", cfg.Port)
	assert.Equal(t, DefaultKBPaths, cfg.KBPaths)
	assert.True(t, cfg.KBBuiltin)
	assert.InDelta(t, 1.35, cfg.MatchThreshold, 1e-9)
	assert.Equal(t, 720*time.Hour, cfg.EventRetention)
	assert.Equal(t, []string{"gemini", "groq", "cerebras"}, cfg.LLMProviders)
	assert.Equal(t, 4, cfg.Bot.SuggestionCount)
	assert.False(t, cfg.HasLLMProvider())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv(EnvKBPaths, " a.json, ,b.yaml ")
	t.Setenv(EnvMatchThreshold, "2.5")
	t.Setenv(EnvGroqAPIKey, "gsk")
	t.Setenv(EnvLLMProviders, "groq")
	t.Setenv(EnvPublicBaseURL, "https://bot.example.com/")
	t.Setenv(EnvKBBuiltin, "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"a.json", "b.yaml"}, cfg.KBPaths)
	assert.InDelta(t, 2.5, cfg.MatchThreshold, 1e-9)
	assert.Equal(t, []string{"groq"}, cfg.LLMProviders)
	assert.Equal(t, "https://bot.example.com", cfg.PublicBaseURL)
	assert.False(t, cfg.KBBuiltin)
	assert.True(t, cfg.HasLLMProvider())
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv(EnvLineChannelAccessToken, "")
	t.Setenv(EnvLineChannelSecret, "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvLineChannelAccessToken)
	assert.Contains(t, err.Error(), EnvLineChannelSecret)
}

func TestLoadForToolMode(t *testing.T) {
	t.Setenv(EnvLineChannelAccessToken, "")
	t.Setenv(EnvLineChannelSecret, "")
	t.Setenv(EnvDataDir, t.TempDir())

	cfg, err := LoadForMode(ToolMode)
	require.NoError(t, err)
	assert.Empty(t, cfg.LineChannelSecret)
}

func TestValidate(t *testing.T) {
	setRequired(t)
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"r2 key without r2", func(c *Config) { c.KBR2Key = "kb/offline.json.zst" }, EnvKBR2Key},
		{"r2 incomplete", func(c *Config) { c.R2Enabled = true }, "R2 requires"},
		{"sentry without token", func(c *Config) { c.SentryEnabled = true }, EnvSentryToken},
		{"metrics auth without password", func(c *Config) { c.MetricsAuthEnabled = true }, EnvMetricsPassword},
		{"unknown provider", func(c *Config) { c.LLMProviders = []string{"claude"} }, "unknown provider"},
		{"no kb source", func(c *Config) { c.KBPaths = nil; c.KBBuiltin = false }, "no knowledge base"},
		{"zero threshold", func(c *Config) { c.MatchThreshold = 0 }, EnvMatchThreshold},
		{"bad suggestion count", func(c *Config) { c.Bot.SuggestionCount = 0 }, "suggestion count"},
		{"bad sample rate", func(c *Config) { c.SentrySampleRate = 2 }, EnvSentrySampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestR2Endpoint(t *testing.T) {
	t.Parallel()
	cfg := &Config{R2AccountID: "abc123"}
	assert.Equal(t, "https://abc123.r2.cloudflarestorage.com", cfg.R2Endpoint())
}

func TestSQLitePath(t *testing.T) {
	t.Parallel()
	cfg := &Config{DataDir: "/data"}
	assert.Equal(t, "/data/qa_events.db", cfg.SQLitePath())
}
