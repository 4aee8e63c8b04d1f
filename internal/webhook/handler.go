// Package webhook receives LINE webhook callbacks, hands each event to the
// bot processor and sends the reply.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/bot"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/config"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/ctxutil"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/lineutil"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/logger"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/metrics"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/ratelimit"
	bsentry "github.com/ngspreakleap/kalyan-linebot-go/internal/sentry"
)

const truncatedNotice = "ℹ️ ចម្លើយវែងពេក ខ្លះមិនបានបង្ហាញទេ។\n\n💡 សូមសួរឲ្យចំជាងនេះ។"

// Handler handles LINE webhook events
type Handler struct {
	channelSecret string
	client        Client
	metrics       *metrics.Metrics
	logger        *logger.Logger
	processor     *bot.Processor
	rateLimiter   *ratelimit.Limiter // Global limiter for Messaging API calls
	wg            sync.WaitGroup

	maxMessagesPerReply int
	maxEventsPerWebhook int
	minReplyTokenLength int
	loadingSeconds      int32
}

// HandlerConfig holds configuration for creating a new Handler
type HandlerConfig struct {
	ChannelSecret string
	ChannelToken  string
	BotConfig     *config.BotConfig
	Metrics       *metrics.Metrics
	Logger        *logger.Logger
	Processor     *bot.Processor
}

// NewHandler creates a new webhook handler. Without WithClient, replies go
// through the Messaging API using cfg.ChannelToken.
func NewHandler(cfg HandlerConfig, opts ...HandlerOption) (*Handler, error) {
	h := &Handler{
		channelSecret:       cfg.ChannelSecret,
		metrics:             cfg.Metrics,
		logger:              cfg.Logger,
		processor:           cfg.Processor,
		rateLimiter:         ratelimit.New(cfg.BotConfig.GlobalRateRPS, cfg.BotConfig.GlobalRateRPS),
		maxMessagesPerReply: cfg.BotConfig.MaxMessagesPerReply,
		maxEventsPerWebhook: cfg.BotConfig.MaxEventsPerWebhook,
		minReplyTokenLength: cfg.BotConfig.MinReplyTokenLength,
		loadingSeconds:      defaultLoadingSeconds,
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.client == nil {
		client, err := NewMessagingClient(cfg.ChannelToken)
		if err != nil {
			return nil, err
		}
		h.client = client
	}
	return h, nil
}

// Handle is the Gin handler for the webhook endpoint
func (h *Handler) Handle(c *gin.Context) {
	cb, err := webhook.ParseRequest(h.channelSecret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.logger.Warn("Invalid webhook signature")
			h.metrics.RecordWebhook("batch", "invalid_signature", 0)
			c.Status(http.StatusBadRequest)
		} else {
			h.logger.WithError(err).Error("Failed to parse webhook request")
			c.Status(http.StatusInternalServerError)
		}
		return
	}

	// LINE expects 200 quickly; events are answered through reply tokens.
	c.Status(http.StatusOK)

	start := time.Now()
	h.metrics.RecordWebhook("batch", "received", 0)

	if len(cb.Events) > h.maxEventsPerWebhook {
		h.logger.WithField("event_count", len(cb.Events)).
			WithField("limit", h.maxEventsPerWebhook).
			Warn("Too many events in webhook batch; truncating")
		cb.Events = cb.Events[:h.maxEventsPerWebhook]
	}

	events := make([]webhook.EventInterface, len(cb.Events))
	copy(events, cb.Events)

	h.wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				h.logger.WithField("panic", r).Error("Panic in async event processing")
				bsentry.CaptureException(context.Background(), fmt.Errorf("webhook panic: %v", r))
			}
		}()

		for _, event := range events {
			h.processEvent(context.Background(), event, start)
		}
	})
}

// processEvent handles a single webhook event
func (h *Handler) processEvent(ctx context.Context, event webhook.EventInterface, webhookStart time.Time) {
	eventStart := time.Now()

	eventID, eventTimestamp, isRedelivery := extractEventMeta(event)
	if eventID == "" {
		eventID = uuid.NewString()
	}
	ctx = ctxutil.WithRequestID(ctx, eventID)
	log := h.logger.WithRequestID(eventID)
	if isRedelivery != nil {
		log = log.WithField("is_redelivery", *isRedelivery)
	}
	if eventTimestamp > 0 {
		log = log.WithField("event_timestamp_ms", eventTimestamp)
	}

	if shouldShowLoading(event) {
		if chatID := bot.GetChatID(eventSource(event)); chatID != "" {
			if err := h.client.ShowLoading(chatID, h.loadingSeconds); err != nil {
				log.WithError(err).Warn("Failed to show loading animation")
			}
		}
	}

	var (
		messages  []messaging_api.MessageInterface
		eventType string
		err       error
	)
	switch e := event.(type) {
	case webhook.MessageEvent:
		eventType = "message"
		messages, err = h.processor.ProcessMessage(ctx, e)
	case webhook.PostbackEvent:
		eventType = "postback"
		messages, err = h.processor.ProcessPostback(ctx, e)
	case webhook.FollowEvent:
		eventType = "follow"
		messages, err = h.processor.ProcessFollow(e)
	case webhook.JoinEvent:
		eventType = "join"
		messages, err = h.processor.ProcessJoin(e)
	default:
		log.WithField("event_type", fmt.Sprintf("%T", e)).Debug("Unsupported event type")
		return
	}
	log = log.WithField("event_type", eventType).
		WithField("chat_type", bot.ChatType(eventSource(event)))

	eventDuration := time.Since(eventStart)
	status := "success"
	if err != nil {
		status = "error"
		log.WithError(err).Error("Failed to handle event")
		bsentry.CaptureException(ctx, err)
	}
	h.metrics.RecordWebhook(eventType, status, eventDuration.Seconds())

	if len(messages) > 0 && err == nil {
		h.reply(ctx, log, event, eventType, h.capMessages(log, messages))
	}

	log.WithField("event_duration_ms", eventDuration.Milliseconds()).
		WithField("batch_duration_ms", time.Since(webhookStart).Milliseconds()).
		Info("Event processed")
}

// capMessages enforces the per-reply message limit, replacing the overflow
// with a short notice.
func (h *Handler) capMessages(log *logger.Logger, messages []messaging_api.MessageInterface) []messaging_api.MessageInterface {
	if len(messages) <= h.maxMessagesPerReply {
		return messages
	}
	log.WithField("message_count", len(messages)).
		WithField("limit", h.maxMessagesPerReply).
		Warn("Message count exceeds limit; truncating")

	capped := append([]messaging_api.MessageInterface{}, messages[:h.maxMessagesPerReply-1]...)
	notice := lineutil.NewTextMessageWithQuickReply(truncatedNotice,
		lineutil.GetSender(lineutil.SenderSystem, ""),
		lineutil.QuickReplyOutlineAction(),
		lineutil.QuickReplyHelpAction(),
	)
	return append(capped, notice)
}

func (h *Handler) reply(ctx context.Context, log *logger.Logger, event webhook.EventInterface, eventType string, messages []messaging_api.MessageInterface) {
	replyToken := getReplyToken(event)
	if replyToken == "" {
		log.Debug("Empty reply token, skipping reply")
		return
	}
	if len(replyToken) < h.minReplyTokenLength {
		log.WithField("token_length", len(replyToken)).Debug("Invalid reply token format")
		return
	}

	if !h.rateLimiter.Allow() {
		log.Warn("Global rate limit exceeded; waiting")
		waitStart := time.Now()
		waitCtx, cancel := context.WithTimeout(ctx, config.WebhookProcessing)
		err := h.rateLimiter.Wait(waitCtx)
		cancel()
		h.metrics.RecordRateLimiterWait("global", time.Since(waitStart).Seconds())
		if err != nil {
			h.metrics.RecordRateLimiterDrop("global")
			log.WithError(err).Warn("Gave up waiting for global rate limit")
			return
		}
	}

	replyStart := time.Now()
	if err := h.client.Reply(replyToken, messages); err != nil {
		errMsg := err.Error()
		switch {
		case strings.Contains(errMsg, "Invalid reply token"):
			log.WithError(err).Debug("Reply token already used or invalid")
		case strings.Contains(errMsg, "rate limit"):
			log.WithError(err).Error("Rate limit exceeded")
		default:
			log.WithError(err).WithField("reply_token", replyToken[:8]+"...").Error("Failed to send reply")
			bsentry.CaptureException(ctx, err)
		}
		h.metrics.RecordWebhook(eventType, "reply_error", time.Since(replyStart).Seconds())
	}
}

func extractEventMeta(event webhook.EventInterface) (string, int64, *bool) {
	switch e := event.(type) {
	case webhook.MessageEvent:
		return e.WebhookEventId, e.Timestamp, boolPtr(e.DeliveryContext)
	case webhook.PostbackEvent:
		return e.WebhookEventId, e.Timestamp, boolPtr(e.DeliveryContext)
	case webhook.FollowEvent:
		return e.WebhookEventId, e.Timestamp, boolPtr(e.DeliveryContext)
	case webhook.JoinEvent:
		return e.WebhookEventId, e.Timestamp, boolPtr(e.DeliveryContext)
	default:
		return "", 0, nil
	}
}

func boolPtr(ctx *webhook.DeliveryContext) *bool {
	if ctx == nil {
		return nil
	}
	val := ctx.IsRedelivery
	return &val
}

// shouldShowLoading reports whether the event will get a reply. Group text
// is answered only when it mentions the bot or is a command.
func shouldShowLoading(event webhook.EventInterface) bool {
	switch e := event.(type) {
	case webhook.MessageEvent:
		textMsg, ok := e.Message.(webhook.TextMessageContent)
		if !ok {
			return false
		}
		if bot.IsPersonalChat(e.Source) {
			return true
		}
		return bot.IsBotMentioned(textMsg) || bot.IsCommand(textMsg.Text)
	case webhook.PostbackEvent, webhook.FollowEvent, webhook.JoinEvent:
		return true
	default:
		return false
	}
}

func getReplyToken(event webhook.EventInterface) string {
	switch e := event.(type) {
	case webhook.MessageEvent:
		return e.ReplyToken
	case webhook.PostbackEvent:
		return e.ReplyToken
	case webhook.FollowEvent:
		return e.ReplyToken
	case webhook.JoinEvent:
		return e.ReplyToken
	default:
		return ""
	}
}

func eventSource(event webhook.EventInterface) webhook.SourceInterface {
	switch e := event.(type) {
	case webhook.MessageEvent:
		return e.Source
	case webhook.PostbackEvent:
		return e.Source
	case webhook.FollowEvent:
		return e.Source
	case webhook.JoinEvent:
		return e.Source
	default:
		return nil
	}
}

// Shutdown waits for all async event processing to complete.
// It returns an error if the context is canceled before completion.
func (h *Handler) Shutdown(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		h.wg.Wait()
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
