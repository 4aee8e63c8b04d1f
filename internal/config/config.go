// Package config provides application configuration management.
// It loads settings from environment variables (optionally via a .env file)
// and applies defaults for the server, knowledge base, and integrations.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultKBPaths is the ordered list of offline knowledge-base files tried
// when KALYAN_KB_PATHS is not set.
var DefaultKBPaths = []string{
	"offline/schoolinfo.json",
	"offline/offline.json",
	"offline.json",
	"offline/offline.yaml",
	"offline/offline.toml",
}

// Config holds all application configuration
type Config struct {
	// LINE Bot Configuration
	LineChannelToken  string
	LineChannelSecret string
	LineBotBasicID    string // e.g. "@kalyan", used for oaMessage deep links

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	PublicBaseURL   string

	// Data Configuration
	DataDir string // Data directory for the SQLite event log

	// Knowledge Base Configuration
	KBPaths        []string // Tried in order, first readable file wins
	KBR2Key        string   // Optional R2 object tried before local files
	KBBuiltin      bool     // Fall back to the embedded school knowledge base
	MatchThreshold float64  // Offline match acceptance threshold

	// QA Event Log
	EventLogEnabled      bool
	EventRetention       time.Duration
	EventCleanupInterval time.Duration

	// LLM Configuration
	LLMEnabled     bool
	LLMProviders   []string // Ordered provider chain: gemini, groq, cerebras
	GeminiAPIKey   string
	GroqAPIKey     string
	CerebrasAPIKey string
	GeminiModels   []string // empty = genai defaults
	GroqModels     []string
	CerebrasModels []string

	// R2 Configuration
	R2Enabled         bool
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string

	// Sentry Configuration (Better Stack Errors)
	SentryEnabled     bool
	SentryToken       string
	SentryHost        string
	SentryEnvironment string
	SentrySampleRate  float64

	// Better Stack Logs
	BetterStackEnabled  bool
	BetterStackToken    string
	BetterStackEndpoint string

	// Metrics Authentication
	MetricsAuthEnabled bool
	MetricsUsername    string
	MetricsPassword    string

	// Bot Configuration (embedded)
	Bot BotConfig
}

// Mode selects which settings are required.
type Mode int

const (
	// ServerMode requires LINE credentials.
	ServerMode Mode = iota
	// ToolMode is for operator tools that never talk to LINE.
	ToolMode
)

// Load reads configuration from environment variables
// It attempts to load .env file first, then reads from env vars
func Load() (*Config, error) {
	return LoadForMode(ServerMode)
}

// LoadForMode is Load with mode-specific validation.
func LoadForMode(mode Mode) (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		LineChannelToken:  getEnv(EnvLineChannelAccessToken, ""),
		LineChannelSecret: getEnv(EnvLineChannelSecret, ""),
		LineBotBasicID:    getEnv(EnvLineBotBasicID, ""),

		Port:            getEnv(EnvPort, "10000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, 30*time.Second),
		PublicBaseURL:   strings.TrimRight(getEnv(EnvPublicBaseURL, ""), "/"),

		DataDir: getEnv(EnvDataDir, getDefaultDataDir()),

		KBPaths:        getListEnv(EnvKBPaths, DefaultKBPaths),
		KBR2Key:        getEnv(EnvKBR2Key, ""),
		KBBuiltin:      getBoolEnv(EnvKBBuiltin, true),
		MatchThreshold: getFloatEnv(EnvMatchThreshold, 1.35),

		EventLogEnabled:      getBoolEnv(EnvEventLogEnabled, true),
		EventRetention:       getDurationEnv(EnvEventRetention, 720*time.Hour), // 30 days
		EventCleanupInterval: getDurationEnv(EnvEventCleanupInterval, 6*time.Hour),

		LLMEnabled:     getBoolEnv(EnvLLMEnabled, true),
		LLMProviders:   getListEnv(EnvLLMProviders, []string{"gemini", "groq", "cerebras"}),
		GeminiAPIKey:   getEnv(EnvGeminiAPIKey, ""),
		GroqAPIKey:     getEnv(EnvGroqAPIKey, ""),
		CerebrasAPIKey: getEnv(EnvCerebrasAPIKey, ""),
		GeminiModels:   getListEnv(EnvGeminiModels, nil),
		GroqModels:     getListEnv(EnvGroqModels, nil),
		CerebrasModels: getListEnv(EnvCerebrasModels, nil),

		R2Enabled:         getBoolEnv(EnvR2Enabled, false),
		R2AccountID:       getEnv(EnvR2AccountID, ""),
		R2AccessKeyID:     getEnv(EnvR2AccessKeyID, ""),
		R2SecretAccessKey: getEnv(EnvR2SecretAccessKey, ""),
		R2BucketName:      getEnv(EnvR2BucketName, ""),

		SentryEnabled:     getBoolEnv(EnvSentryEnabled, false),
		SentryToken:       getEnv(EnvSentryToken, ""),
		SentryHost:        getEnv(EnvSentryHost, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),

		BetterStackEnabled:  getBoolEnv(EnvBetterStackEnabled, false),
		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),

		MetricsAuthEnabled: getBoolEnv(EnvMetricsAuthEnabled, false),
		MetricsUsername:    getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword:    getEnv(EnvMetricsPassword, ""),

		Bot: BotConfig{
			WebhookTimeout:      WebhookProcessing,
			MaxMessagesPerReply: LINEMaxMessagesPerReply,
			MaxEventsPerWebhook: LINEMaxEventsPerWebhook,
			MinReplyTokenLength: 10,
			MaxMessageLength:    LINEMaxTextMessageLength,
			MaxPostbackDataSize: LINEMaxPostbackDataLength,

			UserRateBurst:  getFloatEnv(EnvUserRateBurst, 15),
			UserRateRefill: getFloatEnv(EnvUserRateRefill, 0.1), // 1 token per 10s
			LLMRateBurst:   getFloatEnv(EnvLLMRateBurst, 20),
			LLMRateRefill:  getFloatEnv(EnvLLMRateRefill, 10),
			LLMRateDaily:   getIntEnv(EnvLLMRateDaily, 50),
			GlobalRateRPS:  getFloatEnv(EnvGlobalRateRPS, 100),

			SuggestionCount: getIntEnv(EnvSuggestionCount, 4),
			RelatedCount:    getIntEnv(EnvRelatedCount, 4),
		},
	}

	if err := cfg.ValidateForMode(mode); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	return c.ValidateForMode(ServerMode)
}

// ValidateForMode checks the settings mode needs.
func (c *Config) ValidateForMode(mode Mode) error {
	var errs []error

	if mode == ServerMode {
		if c.LineChannelToken == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvLineChannelAccessToken))
		}
		if c.LineChannelSecret == "" {
			errs = append(errs, fmt.Errorf("%s is required", EnvLineChannelSecret))
		}
	}
	if c.Port == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvPort))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", EnvDataDir))
	}
	if len(c.KBPaths) == 0 && c.KBR2Key == "" && !c.KBBuiltin {
		errs = append(errs, errors.New("no knowledge base source configured"))
	}
	if c.MatchThreshold <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvMatchThreshold, c.MatchThreshold))
	}
	if c.EventLogEnabled && c.EventRetention <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvEventRetention, c.EventRetention))
	}
	if c.EventLogEnabled && c.EventCleanupInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive, got %v", EnvEventCleanupInterval, c.EventCleanupInterval))
	}
	if c.KBR2Key != "" && !c.R2Enabled {
		errs = append(errs, fmt.Errorf("%s requires %s=true", EnvKBR2Key, EnvR2Enabled))
	}
	if c.R2Enabled {
		if c.R2AccountID == "" || c.R2AccessKeyID == "" || c.R2SecretAccessKey == "" || c.R2BucketName == "" {
			errs = append(errs, errors.New("R2 requires account id, access key id, secret access key and bucket name"))
		}
	}
	if c.SentryEnabled && (c.SentryToken == "" || c.SentryHost == "") {
		errs = append(errs, fmt.Errorf("%s requires %s and %s", EnvSentryEnabled, EnvSentryToken, EnvSentryHost))
	}
	if c.SentrySampleRate < 0 || c.SentrySampleRate > 1 {
		errs = append(errs, fmt.Errorf("%s must be within [0, 1], got %v", EnvSentrySampleRate, c.SentrySampleRate))
	}
	if c.BetterStackEnabled && (c.BetterStackToken == "" || c.BetterStackEndpoint == "") {
		errs = append(errs, fmt.Errorf("%s requires %s and %s", EnvBetterStackEnabled, EnvBetterStackToken, EnvBetterStackEndpoint))
	}
	if c.MetricsAuthEnabled && c.MetricsPassword == "" {
		errs = append(errs, fmt.Errorf("%s requires %s", EnvMetricsAuthEnabled, EnvMetricsPassword))
	}
	for _, p := range c.LLMProviders {
		switch p {
		case "gemini", "groq", "cerebras":
		default:
			errs = append(errs, fmt.Errorf("%s: unknown provider %q", EnvLLMProviders, p))
		}
	}
	if err := c.Bot.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("bot config: %w", err))
	}

	return errors.Join(errs...)
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getListEnv splits a comma-separated variable, dropping blank items.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getDefaultDataDir returns platform-specific default data directory
func getDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		return "./data"
	}
	return "/data"
}

// SQLitePath returns the full path to the SQLite database file
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "qa_events.db")
}

// R2Endpoint returns the S3-compatible endpoint of the Cloudflare account.
func (c *Config) R2Endpoint() string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.R2AccountID)
}

// HasLLMProvider returns true if online answers are enabled and at least one
// provider has an API key.
func (c *Config) HasLLMProvider() bool {
	return c.LLMEnabled && (c.GeminiAPIKey != "" || c.GroqAPIKey != "" || c.CerebrasAPIKey != "")
}
