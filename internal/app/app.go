// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/bot"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/buildinfo"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/config"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/genai"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/knowledge"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/logger"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/maintenance"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/matcher"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/metrics"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/modules/faq"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/modules/online"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/modules/usage"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/outline"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/r2client"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/ratelimit"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/sentry"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/storage"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/webhook"
)

const serviceName = "kalyan-linebot-go"

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg            *config.Config
	logger         *logger.Logger
	db             *storage.DB // nil when the event log is disabled
	metrics        *metrics.Metrics
	registry       *prometheus.Registry
	r2             *r2client.Client
	kb             *knowledge.Base
	matcher        *matcher.Matcher
	index          *outline.Index
	answerer       *genai.FallbackAnswerer
	llmLimiter     *ratelimit.KeyedLimiter
	userLimiter    *ratelimit.KeyedLimiter
	webhookHandler *webhook.Handler
	jobs           []*maintenance.Job
	outlinePage    []byte
	server         *http.Server
	wg             sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
// It fails when no knowledge base can be loaded.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	logOpts := logger.Options{}
	if cfg.BetterStackEnabled {
		logOpts.BetterStackToken = cfg.BetterStackToken
		logOpts.BetterStackEndpoint = cfg.BetterStackEndpoint
	}
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logOpts)

	log = log.WithField("service", serviceName).WithField("release", buildinfo.Release())
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Set as default logger to enable context value extraction (userID, chatID, requestID)
	// via ContextHandler in package-level slog.*Context() calls.
	slog.SetDefault(log.Logger)

	log.Info("Initializing application...")

	if cfg.SentryEnabled {
		if err := sentry.Initialize(sentry.Config{
			Token:       cfg.SentryToken,
			Host:        cfg.SentryHost,
			Environment: cfg.SentryEnvironment,
			Release:     buildinfo.Release(),
			SampleRate:  cfg.SentrySampleRate,
		}); err != nil {
			log.WithError(err).Warn("Sentry initialization failed; error reporting disabled")
		} else if sentry.IsEnabled() {
			log.WithField("environment", cfg.SentryEnvironment).Info("Sentry error reporting enabled")
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	a := &Application{
		cfg:      cfg,
		logger:   log,
		metrics:  m,
		registry: registry,
	}

	if cfg.R2Enabled {
		client, err := r2client.New(ctx, r2client.Config{
			Endpoint:    cfg.R2Endpoint(),
			AccessKeyID: cfg.R2AccessKeyID,
			SecretKey:   cfg.R2SecretAccessKey,
			BucketName:  cfg.R2BucketName,
		})
		if err != nil {
			return nil, fmt.Errorf("r2: %w", err)
		}
		a.r2 = client
		log.WithField("bucket", cfg.R2BucketName).Info("R2 object storage enabled")
	}

	if err := a.loadKnowledge(ctx); err != nil {
		return nil, err
	}

	if cfg.EventLogEnabled {
		db, err := storage.New(ctx, cfg.SQLitePath())
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		a.db = db
		log.WithField("path", cfg.SQLitePath()).Info("QA event log connected")
	}

	if cfg.LLMEnabled && cfg.HasLLMProvider() {
		llmCfg := buildLLMConfig(cfg)
		answerer, err := genai.CreateAnswerer(ctx, llmCfg, m)
		if err != nil {
			log.WithError(err).Warn("Online answerer initialization failed")
		}
		a.answerer = answerer
		if answerer != nil {
			providers := llmCfg.ConfiguredProviders()
			names := make([]string, len(providers))
			for i, p := range providers {
				names[i] = p.String()
			}
			log.WithField("providers", names).Info("Online answers enabled")
		}
	}

	a.llmLimiter = ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "llm",
		Burst:         cfg.Bot.LLMRateBurst,
		RefillRate:    cfg.Bot.LLMRateRefill / 3600.0, // Convert hourly to per-second
		DailyLimit:    cfg.Bot.LLMRateDaily,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})
	a.userLimiter = ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "user",
		Burst:         cfg.Bot.UserRateBurst,
		RefillRate:    cfg.Bot.UserRateRefill,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})

	var recorder storage.EventRecorder
	if a.db != nil {
		recorder = a.db
	}
	events := bot.NewEventLog(recorder, m, log)

	var answerer genai.Answerer
	if a.answerer != nil {
		answerer = a.answerer
	}
	onlineEnabled := answerer != nil

	faqOpts := []faq.HandlerOption{
		faq.WithSuggestionCount(cfg.Bot.SuggestionCount),
		faq.WithRelatedCount(cfg.Bot.RelatedCount),
		faq.WithOnlineEnabled(onlineEnabled),
	}
	if cfg.PublicBaseURL != "" && cfg.LineBotBasicID != "" {
		faqOpts = append(faqOpts, faq.WithOutlineURL(cfg.PublicBaseURL+"/outline"))
	}
	faqHandler := faq.NewHandler(a.matcher, a.index, events, m, log, faqOpts...)
	onlineHandler := online.NewHandler(answerer, a.llmLimiter, events, m, log)
	usageHandler := usage.NewHandler(a.userLimiter, a.llmLimiter, log)

	// Free text tries the offline knowledge base before online answers.
	botRegistry := bot.NewRegistry(log)
	botRegistry.Register(faqHandler)
	botRegistry.Register(onlineHandler)
	botRegistry.Register(usageHandler)

	processor := bot.NewProcessor(bot.ProcessorConfig{
		Registry:      botRegistry,
		UserLimiter:   a.userLimiter,
		Events:        events,
		Logger:        log,
		Metrics:       m,
		BotConfig:     &cfg.Bot,
		OnlineEnabled: onlineEnabled,
	})

	webhookHandler, err := webhook.NewHandler(webhook.HandlerConfig{
		ChannelSecret: cfg.LineChannelSecret,
		ChannelToken:  cfg.LineChannelToken,
		BotConfig:     &cfg.Bot,
		Metrics:       m,
		Logger:        log,
		Processor:     processor,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook: %w", err)
	}
	a.webhookHandler = webhookHandler

	if a.db != nil {
		a.jobs = append(a.jobs, a.eventRetentionJob())
	}

	page, err := renderOutlinePage(a.index, cfg.LineBotBasicID)
	if err != nil {
		return nil, fmt.Errorf("outline page: %w", err)
	}
	a.outlinePage = page

	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.newRouter(),
		ReadHeaderTimeout: config.WebhookHTTPRead,
		ReadTimeout:       config.WebhookHTTPRead,
		WriteTimeout:      config.WebhookHTTPWrite,
		IdleTimeout:       config.WebhookHTTPIdle,
	}

	log.Info("Initialization complete")
	return a, nil
}

// loadKnowledge tries R2, the configured files and the builtin base, in that
// order, and builds the matcher and outline index from the first hit.
func (a *Application) loadKnowledge(ctx context.Context) error {
	loadCtx, cancel := context.WithTimeout(ctx, config.KnowledgeLoad)
	defer cancel()

	var loaders []knowledge.Loader
	if a.r2 != nil && a.cfg.KBR2Key != "" {
		loaders = append(loaders, knowledge.ObjectLoader{Client: a.r2, Key: a.cfg.KBR2Key})
	}
	loaders = append(loaders, knowledge.FileLoaders(a.cfg.KBPaths...)...)
	loaders = append(loaders, knowledge.BuiltinLoader{Disabled: !a.cfg.KBBuiltin})

	kb, err := knowledge.LoadFirst(loadCtx, a.logger, loaders...)
	if err != nil {
		a.metrics.RecordKnowledgeLoad("none", "error")
		return fmt.Errorf("knowledge base: %w", err)
	}
	a.metrics.RecordKnowledgeLoad(sourceKind(kb.Source()), "success")

	a.kb = kb
	a.matcher = matcher.New(kb, matcher.WithThreshold(a.cfg.MatchThreshold))
	a.index = outline.NewIndex(kb.Outline())
	a.metrics.SetKnowledgeSize(kb.Len(), len(a.index.Questions()))

	if shadowed := a.matcher.Unreachable(); len(shadowed) > 0 {
		questions := make([]string, len(shadowed))
		for i, s := range shadowed {
			questions[i] = s.Question
		}
		a.logger.WithField("count", len(shadowed)).
			WithField("questions", questions).
			Warn("Entries shadowed by an earlier question")
	}
	if bad := a.index.Unresolved(a.matcher); len(bad) > 0 {
		a.logger.WithField("count", len(bad)).
			WithField("questions", bad).
			Warn("Outline questions without a matching entry")
	}
	return nil
}

// sourceKind keeps the format prefix of a knowledge source ("json", "builtin").
func sourceKind(source string) string {
	kind, _, _ := strings.Cut(source, ":")
	return kind
}

// eventRetentionJob deletes QA events older than the retention window.
func (a *Application) eventRetentionJob() *maintenance.Job {
	var store maintenance.Store = maintenance.NewMemoryStore()
	if a.r2 != nil {
		r2Store, err := maintenance.NewR2ScheduleStore(a.r2, config.MaintenanceStateKey, config.R2Request)
		if err != nil {
			a.logger.WithError(err).Warn("R2 schedule store unavailable; using memory")
		} else {
			store = r2Store
		}
	}

	return &maintenance.Job{
		Name:     "event_retention",
		Interval: a.cfg.EventCleanupInterval,
		Timeout:  5 * time.Minute,
		Run: func(ctx context.Context) error {
			cutoff := time.Now().Add(-a.cfg.EventRetention)
			deleted, err := a.db.DeleteBefore(ctx, cutoff)
			if err != nil {
				return err
			}
			a.logger.WithField("deleted", deleted).
				WithField("cutoff", cutoff.Format(time.RFC3339)).
				Info("Expired QA events deleted")
			return nil
		},
		Store:   store,
		Metrics: a.metrics,
		Logger:  a.logger,
	}
}

// buildLLMConfig creates an LLMConfig from the application config.
func buildLLMConfig(cfg *config.Config) genai.LLMConfig {
	llmCfg := genai.DefaultLLMConfig()

	llmCfg.Gemini.APIKey = cfg.GeminiAPIKey
	llmCfg.Groq.APIKey = cfg.GroqAPIKey
	llmCfg.Cerebras.APIKey = cfg.CerebrasAPIKey
	llmCfg.AttemptTimeout = config.LLMAttempt

	if len(cfg.GeminiModels) > 0 {
		llmCfg.Gemini.Models = cfg.GeminiModels
	}
	if len(cfg.GroqModels) > 0 {
		llmCfg.Groq.Models = cfg.GroqModels
	}
	if len(cfg.CerebrasModels) > 0 {
		llmCfg.Cerebras.Models = cfg.CerebrasModels
	}
	if len(cfg.LLMProviders) > 0 {
		providers := make([]genai.Provider, 0, len(cfg.LLMProviders))
		for _, p := range cfg.LLMProviders {
			switch strings.ToLower(strings.TrimSpace(p)) {
			case "gemini":
				providers = append(providers, genai.ProviderGemini)
			case "groq":
				providers = append(providers, genai.ProviderGroq)
			case "cerebras":
				providers = append(providers, genai.ProviderCerebras)
			default:
				slog.Warn("ignoring unknown provider", "name", p)
			}
		}
		if len(providers) > 0 {
			llmCfg.Providers = providers
		}
	}

	return llmCfg
}

// newRouter wires middleware and routes.
func (a *Application) newRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(a.logger))

	router.GET("/", a.redirectToOutline)
	router.GET("/livez", a.livenessCheck)
	router.HEAD("/livez", a.livenessCheck)
	router.GET("/readyz", a.readinessCheck)
	router.HEAD("/readyz", a.readinessCheck)
	router.GET("/outline", a.outlineHandler)
	router.POST("/webhook", a.webhookHandler.Handle)
	router.GET("/metrics",
		metricsAuth(a.cfg),
		gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	return router
}

// Run starts the HTTP server and background jobs.
//
// Shutdown order: cancel background jobs, wait for them, then close the
// HTTP server, pending webhook events and resources. Jobs finish before the
// database closes.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel() // Ensure context is always canceled

	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	sig := a.waitForShutdownSignal()
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	for _, job := range a.jobs {
		a.wg.Go(func() {
			job.Loop(ctx, config.MaintenanceTick)
		})
	}
}

// startHTTPServer starts the HTTP server in a goroutine.
func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

// waitForShutdownSignal blocks until SIGINT/SIGTERM is received.
func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

// shutdown stops the HTTP server, drains webhook events and closes
// resources. Call it after background jobs have stopped.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Waiting for webhook events to complete...")
	if err := a.webhookHandler.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Webhook handler shutdown timeout")
	}

	a.logger.Info("Closing resources...")

	if a.answerer != nil {
		if err := a.answerer.Close(); err != nil {
			a.logger.WithError(err).WithField("component", "answerer").Error("Component close error")
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.WithError(err).WithField("component", "database").Error("Component close error")
		}
	}

	if a.llmLimiter != nil {
		a.llmLimiter.Stop()
	}
	if a.userLimiter != nil {
		a.userLimiter.Stop()
	}

	if sentry.IsEnabled() && !sentry.Flush(5*time.Second) {
		a.logger.Warn("Sentry flush timed out")
	}

	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}

	a.logger.Info("Shutdown complete")
	return nil
}
