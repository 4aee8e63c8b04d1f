package config

import "time"

// Webhook timeouts
const (
	// WebhookProcessing bounds the handling of one webhook event, online
	// answers included. LINE's loading animation lasts at most 60s.
	WebhookProcessing = 60 * time.Second

	// WebhookHTTPRead is short since LINE sends small JSON payloads.
	WebhookHTTPRead = 10 * time.Second

	// WebhookHTTPWrite covers WebhookProcessing plus serialization.
	WebhookHTTPWrite = 65 * time.Second

	// WebhookHTTPIdle is the keep-alive idle timeout.
	WebhookHTTPIdle = 120 * time.Second
)

// Background work
const (
	// KnowledgeLoad bounds the startup knowledge-base load, R2 included.
	KnowledgeLoad = 30 * time.Second

	// EventWrite bounds a single QA event insert.
	EventWrite = 3 * time.Second

	// ReadinessCheck bounds the /readyz database ping.
	ReadinessCheck = 2 * time.Second

	// R2Request bounds a single object storage call outside startup.
	R2Request = 10 * time.Second

	// MaintenanceTick is how often background jobs check whether they are due.
	MaintenanceTick = 10 * time.Minute

	// RateLimiterCleanupInterval is how often idle per-user buckets are dropped.
	RateLimiterCleanupInterval = 5 * time.Minute
)

// MaintenanceStateKey is the R2 object holding background job run times.
const MaintenanceStateKey = "maintenance/schedule.json"

// LLM timeouts
const (
	// LLMAnswer is the budget for one online answer across retries and
	// provider fallbacks.
	LLMAnswer = 45 * time.Second

	// LLMAttempt bounds a single provider call.
	LLMAttempt = 20 * time.Second
)
