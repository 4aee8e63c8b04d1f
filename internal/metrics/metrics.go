// Package metrics defines the Prometheus metrics of the bot.
// Record methods are safe on a nil *Metrics so that components can run
// without a registry in tests and tools.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Match outcomes, shared with the QA event log kinds.
const (
	OutcomeOfflineHit   = "offline_hit"
	OutcomeSuggest      = "suggest"
	OutcomeMiss         = "miss"
	OutcomeDeepLink     = "deeplink"
	OutcomeDeepLinkMiss = "deeplink_miss"
	OutcomeOnline       = "online"
	OutcomeOnlineError  = "online_error"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Matcher metrics
	MatchTotal           *prometheus.CounterVec
	MatchScore           prometheus.Histogram
	MatchDurationSeconds prometheus.Histogram

	// Knowledge base metrics
	KnowledgeEntries          prometheus.Gauge
	KnowledgeOutlineQuestions prometheus.Gauge
	KnowledgeLoadsTotal       *prometheus.CounterVec

	// Webhook metrics
	WebhookDurationSeconds *prometheus.HistogramVec
	WebhookRequestsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec

	// LLM metrics
	LLMRequestsTotal   *prometheus.CounterVec
	LLMDurationSeconds *prometheus.HistogramVec
	LLMRetriesTotal    *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterWaitDuration *prometheus.HistogramVec
	RateLimiterDropped      *prometheus.CounterVec

	// Singleflight metrics
	SingleflightDedupTotal *prometheus.CounterVec

	// Event log metrics
	EventStoreErrorsTotal *prometheus.CounterVec

	// Background job metrics
	JobRunsTotal       *prometheus.CounterVec
	JobDurationSeconds *prometheus.HistogramVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	m := &Metrics{
		// Matcher metrics
		MatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalyan_match_total",
				Help: "Total number of answered questions by outcome",
			},
			[]string{"outcome"}, // outcome: offline_hit, suggest, miss, deeplink, deeplink_miss, online, online_error
		),

		MatchScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kalyan_match_best_score",
				Help:    "Best offline match score per question",
				Buckets: []float64{0.25, 0.5, 0.75, 1, 1.35, 1.75, 2.25, 3, 3.5, 4},
			},
		),

		MatchDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kalyan_match_duration_seconds",
				Help:    "Time spent scoring one question against the knowledge base",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		),

		// Knowledge base metrics
		KnowledgeEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kalyan_knowledge_entries",
				Help: "Number of question/answer entries in the loaded knowledge base",
			},
		),

		KnowledgeOutlineQuestions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "kalyan_knowledge_outline_questions",
				Help: "Number of questions listed in the knowledge base outline",
			},
		),

		KnowledgeLoadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalyan_knowledge_loads_total",
				Help: "Knowledge base load attempts by loader and status",
			},
			[]string{"loader", "status"}, // status: success, not_found, error
		),

		// Webhook metrics
		WebhookDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kalyan_webhook_duration_seconds",
				Help:    "Webhook processing duration in seconds by event type",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"event_type"}, // event_type: message, postback, follow, join
		),

		WebhookRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalyan_webhook_requests_total",
				Help: "Total number of webhook events by event type and status",
			},
			[]string{"event_type", "status"}, // status: success, error, ignored
		),

		// HTTP metrics
		HTTPErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalyan_http_errors_total",
				Help: "Total HTTP errors by type and module",
			},
			[]string{"error_type", "module"}, // error_type: invalid_signature, reply_failed, rate_limit
		),

		// LLM metrics
		LLMRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalyan_llm_requests_total",
				Help: "Online answer requests by provider and status",
			},
			[]string{"provider", "status"}, // status: success, error, empty
		),

		LLMDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kalyan_llm_duration_seconds",
				Help:    "Online answer latency by provider",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45},
			},
			[]string{"provider"},
		),

		LLMRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalyan_llm_retries_total",
				Help: "Online answer retries by provider",
			},
			[]string{"provider"},
		),

		// Rate limiter metrics
		RateLimiterWaitDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kalyan_rate_limiter_wait_duration_seconds",
				Help:    "Time spent waiting for rate limiter token by limiter type",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"limiter_type"},
		),

		RateLimiterDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalyan_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"}, // limiter_type: user, llm, global
		),

		// Singleflight metrics
		SingleflightDedupTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalyan_singleflight_dedup_total",
				Help: "Total number of deduplicated requests (requests that waited instead of executing)",
			},
			[]string{"module"},
		),

		// Event log metrics
		EventStoreErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalyan_event_store_errors_total",
				Help: "QA event log failures by operation",
			},
			[]string{"op"}, // op: record, cleanup, query
		),

		// Background job metrics
		JobRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalyan_job_runs_total",
				Help: "Background job runs by job and status",
			},
			[]string{"job", "status"},
		),

		JobDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kalyan_job_duration_seconds",
				Help:    "Background job duration",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120},
			},
			[]string{"job"},
		),
	}

	return m
}

// RecordMatch records the outcome of answering one question. score is the
// best offline score, or a negative value when no scoring took place.
func (m *Metrics) RecordMatch(outcome string, score, duration float64) {
	if m == nil {
		return
	}
	m.MatchTotal.WithLabelValues(outcome).Inc()
	if score >= 0 {
		m.MatchScore.Observe(score)
		m.MatchDurationSeconds.Observe(duration)
	}
}

// SetKnowledgeSize publishes the size of the loaded knowledge base.
func (m *Metrics) SetKnowledgeSize(entries, outlineQuestions int) {
	if m == nil {
		return
	}
	m.KnowledgeEntries.Set(float64(entries))
	m.KnowledgeOutlineQuestions.Set(float64(outlineQuestions))
}

// RecordKnowledgeLoad records one loader attempt.
func (m *Metrics) RecordKnowledgeLoad(loader, status string) {
	if m == nil {
		return
	}
	m.KnowledgeLoadsTotal.WithLabelValues(loader, status).Inc()
}

// RecordWebhook records a webhook request
func (m *Metrics) RecordWebhook(eventType, status string, duration float64) {
	if m == nil {
		return
	}
	m.WebhookRequestsTotal.WithLabelValues(eventType, status).Inc()
	m.WebhookDurationSeconds.WithLabelValues(eventType).Observe(duration)
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, module string) {
	if m == nil {
		return
	}
	m.HTTPErrorsTotal.WithLabelValues(errorType, module).Inc()
}

// RecordLLM records one provider call.
func (m *Metrics) RecordLLM(provider, status string, duration float64) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(provider, status).Inc()
	m.LLMDurationSeconds.WithLabelValues(provider).Observe(duration)
}

// RecordLLMRetry records a retry against the same provider model.
func (m *Metrics) RecordLLMRetry(provider string) {
	if m == nil {
		return
	}
	m.LLMRetriesTotal.WithLabelValues(provider).Inc()
}

// RecordRateLimiterWait records time spent waiting for rate limiter
func (m *Metrics) RecordRateLimiterWait(limiterType string, duration float64) {
	if m == nil {
		return
	}
	m.RateLimiterWaitDuration.WithLabelValues(limiterType).Observe(duration)
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	if m == nil {
		return
	}
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// RecordSingleflightDedup records a deduplicated request
func (m *Metrics) RecordSingleflightDedup(module string) {
	if m == nil {
		return
	}
	m.SingleflightDedupTotal.WithLabelValues(module).Inc()
}

// RecordEventStoreError records a QA event log failure.
func (m *Metrics) RecordEventStoreError(op string) {
	if m == nil {
		return
	}
	m.EventStoreErrorsTotal.WithLabelValues(op).Inc()
}

// RecordJob records a background job run.
func (m *Metrics) RecordJob(job, status string, duration float64) {
	if m == nil {
		return
	}
	m.JobRunsTotal.WithLabelValues(job, status).Inc()
	m.JobDurationSeconds.WithLabelValues(job).Observe(duration)
}
