package config

//nolint:gosec,revive // Environment variable keys are not credentials.
const (
	// LINE
	EnvLineChannelAccessToken = "KALYAN_LINE_CHANNEL_ACCESS_TOKEN"
	EnvLineChannelSecret      = "KALYAN_LINE_CHANNEL_SECRET"
	EnvLineBotBasicID         = "KALYAN_LINE_BOT_BASIC_ID"

	// Server
	EnvPort            = "KALYAN_PORT"
	EnvLogLevel        = "KALYAN_LOG_LEVEL"
	EnvShutdownTimeout = "KALYAN_SHUTDOWN_TIMEOUT"
	EnvPublicBaseURL   = "KALYAN_PUBLIC_BASE_URL"
	EnvDataDir         = "KALYAN_DATA_DIR"

	// Knowledge base
	EnvKBPaths         = "KALYAN_KB_PATHS"
	EnvKBR2Key         = "KALYAN_KB_R2_KEY"
	EnvKBBuiltin       = "KALYAN_KB_BUILTIN"
	EnvMatchThreshold  = "KALYAN_MATCH_THRESHOLD"
	EnvSuggestionCount = "KALYAN_SUGGESTION_COUNT"
	EnvRelatedCount    = "KALYAN_RELATED_COUNT"

	// QA event log
	EnvEventLogEnabled      = "KALYAN_EVENT_LOG_ENABLED"
	EnvEventRetention       = "KALYAN_EVENT_RETENTION"
	EnvEventCleanupInterval = "KALYAN_EVENT_CLEANUP_INTERVAL"

	// Rate limits
	EnvGlobalRateRPS  = "KALYAN_GLOBAL_RATE_RPS"
	EnvUserRateBurst  = "KALYAN_USER_RATE_BURST"
	EnvUserRateRefill = "KALYAN_USER_RATE_REFILL"
	EnvLLMRateBurst   = "KALYAN_LLM_RATE_BURST"
	EnvLLMRateRefill  = "KALYAN_LLM_RATE_REFILL"
	EnvLLMRateDaily   = "KALYAN_LLM_RATE_DAILY"

	// Online answers
	EnvLLMEnabled     = "KALYAN_LLM_ENABLED"
	EnvLLMProviders   = "KALYAN_LLM_PROVIDERS"
	EnvGeminiAPIKey   = "KALYAN_GEMINI_API_KEY"
	EnvGroqAPIKey     = "KALYAN_GROQ_API_KEY"
	EnvCerebrasAPIKey = "KALYAN_CEREBRAS_API_KEY"
	EnvGeminiModels   = "KALYAN_GEMINI_MODELS"
	EnvGroqModels     = "KALYAN_GROQ_MODELS"
	EnvCerebrasModels = "KALYAN_CEREBRAS_MODELS"

	// R2
	EnvR2Enabled         = "KALYAN_R2_ENABLED"
	EnvR2AccountID       = "KALYAN_R2_ACCOUNT_ID"
	EnvR2AccessKeyID     = "KALYAN_R2_ACCESS_KEY_ID"
	EnvR2SecretAccessKey = "KALYAN_R2_SECRET_ACCESS_KEY"
	EnvR2BucketName      = "KALYAN_R2_BUCKET_NAME"

	// Sentry (Better Stack Errors)
	EnvSentryEnabled     = "KALYAN_SENTRY_ENABLED"
	EnvSentryToken       = "KALYAN_SENTRY_TOKEN"
	EnvSentryHost        = "KALYAN_SENTRY_HOST"
	EnvSentryEnvironment = "KALYAN_SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "KALYAN_SENTRY_SAMPLE_RATE"

	// Better Stack logs
	EnvBetterStackEnabled  = "KALYAN_BETTERSTACK_ENABLED"
	EnvBetterStackToken    = "KALYAN_BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "KALYAN_BETTERSTACK_ENDPOINT"

	// Metrics auth
	EnvMetricsAuthEnabled = "KALYAN_METRICS_AUTH_ENABLED"
	EnvMetricsUsername    = "KALYAN_METRICS_USERNAME"
	EnvMetricsPassword    = "KALYAN_METRICS_PASSWORD"
)
