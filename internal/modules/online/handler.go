// Package online implements the LLM-backed answer module for the LINE bot.
// It serves /ask and /ai, and answers free text the offline knowledge base
// could not.
package online

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/bot"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/config"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/ctxutil"
	domerrors "github.com/ngspreakleap/kalyan-linebot-go/internal/errors"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/genai"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/lineutil"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/logger"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/metrics"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/ratelimit"
	bsentry "github.com/ngspreakleap/kalyan-linebot-go/internal/sentry"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/storage"
)

// Module constants
const (
	ModuleName = "online"

	usageText         = "🧠 ប្រើឧទាហរណ៍៖\n• /ask អ្វីទៅជា AI?\n• /ai តើរុក្ខជាតិធ្វើរស្មីសំយោគយ៉ាងដូចម្ដេច?"
	notConfiguredText = "⚠️ API មិនបានកំណត់។ សូមប្រើសំណួរ Offline តាម /schoolinfo។"
	emptyAnswerText   = "⚠️ API មិនបង្ហាញអត្ថបទចម្លើយ។"
	errorText         = "❌ មានបញ្ហាពេលហៅ API"
	throttledText     = "⏳ អ្នកសួរ AI ញឹកញាប់ពេក។ សូមរង់ចាំបន្តិច ឬប្រើសំណួរ Offline។"
	dailyLimitText    = "⏳ អ្នកបានប្រើសំណួរ AI អស់សម្រាប់ថ្ងៃនេះហើយ។ សូមសាកល្បងម្ដងទៀតថ្ងៃស្អែក។"

	// maxAnswerMessages leaves room in the five-message reply.
	maxAnswerMessages = 3
)

var (
	askRegex     = bot.BuildKeywordRegex([]string{"/ask", "/ai"})
	answerErrors = domerrors.NewWrapper(ModuleName, "online_answer")
)

// Handler answers questions through the configured LLM providers.
type Handler struct {
	answerer   genai.Answerer
	llmLimiter *ratelimit.KeyedLimiter
	events     *bot.EventLog
	metrics    *metrics.Metrics
	logger     *logger.Logger
	timeout    time.Duration
}

// NewHandler creates the online handler. A nil answerer disables online
// answers; a nil limiter disables LLM quotas.
func NewHandler(
	answerer genai.Answerer,
	llmLimiter *ratelimit.KeyedLimiter,
	events *bot.EventLog,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Handler {
	return &Handler{
		answerer:   answerer,
		llmLimiter: llmLimiter,
		events:     events,
		metrics:    metrics,
		logger:     logger,
		timeout:    config.LLMAnswer,
	}
}

// Name returns the module name
func (h *Handler) Name() string {
	return ModuleName
}

// Enabled reports whether an LLM provider is wired in.
func (h *Handler) Enabled() bool {
	return h.answerer != nil
}

// PostbackPrefix returns "" since online answers have no buttons.
func (h *Handler) PostbackPrefix() string {
	return ""
}

// CanHandle returns true for /ask and /ai.
func (h *Handler) CanHandle(text string) bool {
	return askRegex.MatchString(strings.TrimSpace(text))
}

// HandleMessage answers "/ask <question>" online.
func (h *Handler) HandleMessage(ctx context.Context, text string) []messaging_api.MessageInterface {
	kw := bot.MatchKeyword(askRegex, strings.TrimSpace(text))
	question := bot.ExtractSearchTerm(text, kw)
	sender := lineutil.GetSender(lineutil.SenderOnline, "")

	if question == "" {
		return []messaging_api.MessageInterface{
			lineutil.NewTextMessageWithConsistentSender(usageText, sender),
		}
	}
	if !h.Enabled() {
		return []messaging_api.MessageInterface{
			lineutil.NewTextMessageWithQuickReply(notConfiguredText, sender, lineutil.QuickReplyOutlineAction()),
		}
	}
	return h.answer(ctx, question)
}

// HandlePostback is unused.
func (h *Handler) HandlePostback(context.Context, string) []messaging_api.MessageInterface {
	return nil
}

// HandleFreeText answers online when a provider is configured.
func (h *Handler) HandleFreeText(ctx context.Context, text string) []messaging_api.MessageInterface {
	if !h.Enabled() {
		return nil
	}
	return h.answer(ctx, text)
}

func (h *Handler) answer(ctx context.Context, question string) []messaging_api.MessageInterface {
	log := h.logger.WithModule(ModuleName)
	sender := lineutil.GetSender(lineutil.SenderOnline, "")

	if msg := h.checkQuota(ctx); msg != "" {
		return []messaging_api.MessageInterface{
			lineutil.NewTextMessageWithQuickReply(msg, sender, lineutil.QuickReplyOutlineAction()),
		}
	}

	answerCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	ans, err := h.answerer.Answer(answerCtx, question)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		h.metrics.RecordMatch(metrics.OutcomeOnlineError, -1, elapsed)
		h.events.Record(ctx, storage.KindOnlineError, question, "", 0, "")

		if errors.Is(err, genai.ErrEmptyAnswer) {
			err = answerErrors.Wrap(err, emptyAnswerText)
			log.Warn("Online answer was empty")
		} else {
			err = answerErrors.Wrap(err, errorText)
			log.WithError(err).Warn("Online answer failed")
			if !errors.Is(err, context.Canceled) {
				bsentry.CaptureException(ctx, err)
			}
		}
		return []messaging_api.MessageInterface{
			lineutil.NewTextMessageWithConsistentSender(domerrors.GetUserMessage(err), sender),
		}
	}

	h.metrics.RecordMatch(metrics.OutcomeOnline, -1, elapsed)
	h.events.Record(ctx, storage.KindOnline, question, "", 0, ans.Provider.String())
	log.WithField("provider", ans.Provider.String()).
		WithField("model", ans.Model).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Debug("Online answer")

	chunks := lineutil.SplitText("❓ "+question+"\n\n"+ans.Text, lineutil.TextListSafeBuffer)
	if len(chunks) > maxAnswerMessages {
		chunks = chunks[:maxAnswerMessages]
	}
	msgs := make([]messaging_api.MessageInterface, 0, len(chunks))
	for _, c := range chunks {
		msgs = append(msgs, lineutil.NewTextMessageWithConsistentSender(c, sender))
	}
	return msgs
}

// checkQuota returns the refusal text when the caller is over the LLM limit.
func (h *Handler) checkQuota(ctx context.Context) string {
	if h.llmLimiter == nil {
		return ""
	}
	key := ctxutil.GetUserID(ctx)
	if key == "" {
		key = ctxutil.GetChatID(ctx)
	}
	switch h.llmLimiter.Decide(key) {
	case ratelimit.Throttled:
		h.logger.WithModule(ModuleName).Warn("LLM rate limit exceeded")
		return throttledText
	case ratelimit.DailyExhausted:
		h.logger.WithModule(ModuleName).Warn("LLM daily quota exhausted")
		return dailyLimitText
	default:
		return ""
	}
}
