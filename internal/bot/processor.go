package bot

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/config"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/ctxutil"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/lineutil"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/logger"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/metrics"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/ratelimit"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/storage"
)

// helpKeywords trigger the help message.
var helpKeywords = []string{"/help", "help", "ជំនួយ"}

// Processor handles the core logic of processing LINE events.
// It orchestrates rate limiting, group gating and dispatching to handlers.
type Processor struct {
	registry      *Registry
	userLimiter   *ratelimit.KeyedLimiter
	events        *EventLog
	logger        *logger.Logger
	metrics       *metrics.Metrics
	onlineEnabled bool

	webhookTimeout      time.Duration
	maxMessageLength    int
	maxPostbackDataSize int
}

// ProcessorConfig holds configuration for creating a new Processor.
type ProcessorConfig struct {
	Registry      *Registry
	UserLimiter   *ratelimit.KeyedLimiter // nil disables per-user limits
	Events        *EventLog
	Logger        *logger.Logger
	Metrics       *metrics.Metrics
	BotConfig     *config.BotConfig
	OnlineEnabled bool
}

// NewProcessor creates a new event processor.
func NewProcessor(cfg ProcessorConfig) *Processor {
	return &Processor{
		registry:            cfg.Registry,
		userLimiter:         cfg.UserLimiter,
		events:              cfg.Events,
		logger:              cfg.Logger,
		metrics:             cfg.Metrics,
		onlineEnabled:       cfg.OnlineEnabled,
		webhookTimeout:      cfg.BotConfig.WebhookTimeout,
		maxMessageLength:    cfg.BotConfig.MaxMessageLength,
		maxPostbackDataSize: cfg.BotConfig.MaxPostbackDataSize,
	}
}

// withSource injects the chat and user ids for downstream logging and events.
func withSource(ctx context.Context, source webhook.SourceInterface) context.Context {
	ctx = ctxutil.WithChatID(ctx, GetChatID(source))
	return ctxutil.WithUserID(ctx, GetUserID(source))
}

// ProcessMessage handles a text message event.
func (p *Processor) ProcessMessage(ctx context.Context, event webhook.MessageEvent) ([]messaging_api.MessageInterface, error) {
	ctx = withSource(ctx, event.Source)

	textMsg, ok := event.Message.(webhook.TextMessageContent)
	if !ok {
		// Only text is answered; stickers and media are ignored.
		return nil, nil
	}

	personal := IsPersonalChat(event.Source)
	text := textMsg.Text
	if !personal {
		mentioned := IsBotMentioned(textMsg)
		if !mentioned && !IsCommand(text) {
			return nil, nil
		}
		if mentioned {
			text = RemoveBotMentions(text, textMsg.Mention)
		}
	}

	// Rate limit only messages the bot would answer.
	if allowed, msgs := p.checkUserRateLimit(event.Source); !allowed {
		return msgs, nil
	}

	text = normalizeWhitespace(text)
	if text == "" {
		return p.helpMessages(), nil
	}
	if len([]rune(text)) > p.maxMessageLength {
		p.logger.WithField("length", len([]rune(text))).Warn("Text message too long")
		return []messaging_api.MessageInterface{
			lineutil.NewTextMessageWithConsistentSender(MessageTooLongText, lineutil.GetSender(lineutil.SenderSystem, "")),
		}, nil
	}

	if isHelp(text) {
		p.logger.Debug("User requested help")
		return p.helpMessages(), nil
	}

	processCtx, cancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), p.webhookTimeout)
	defer cancel()

	if msgs := p.registry.DispatchMessage(processCtx, text); len(msgs) > 0 {
		return msgs, nil
	}
	if IsCommand(text) {
		// Unknown slash command.
		return p.helpMessages(), nil
	}

	if msgs := p.registry.DispatchFreeText(processCtx, text); len(msgs) > 0 {
		return msgs, nil
	}

	p.metrics.RecordMatch(metrics.OutcomeMiss, -1, 0)
	p.events.Record(processCtx, storage.KindMiss, text, "", 0, "")
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithQuickReply(MissText, lineutil.GetSender(lineutil.SenderAssistant, ""),
			lineutil.QuickReplyOutlineAction(),
			lineutil.QuickReplyHelpAction(),
		),
	}, nil
}

// ProcessPostback handles a postback event.
func (p *Processor) ProcessPostback(ctx context.Context, event webhook.PostbackEvent) ([]messaging_api.MessageInterface, error) {
	ctx = withSource(ctx, event.Source)

	data := strings.TrimSpace(event.Postback.Data)
	if data == "" {
		p.logger.Warn("Empty postback data")
		return nil, nil
	}
	if len(data) > p.maxPostbackDataSize {
		p.logger.WithField("length", len(data)).Warn("Postback data too long")
		return nil, nil
	}

	if allowed, msgs := p.checkUserRateLimit(event.Source); !allowed {
		return msgs, nil
	}

	p.logger.WithField("data", data).Debug("Received postback")

	if isHelp(data) {
		return p.helpMessages(), nil
	}

	processCtx, cancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), p.webhookTimeout)
	defer cancel()

	if msgs := p.registry.DispatchPostback(processCtx, data); len(msgs) > 0 {
		return msgs, nil
	}

	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithQuickReply(PostbackStaleText, lineutil.GetSender(lineutil.SenderSystem, ""),
			lineutil.QuickReplyOutlineAction(),
		),
	}, nil
}

// ProcessFollow greets a user who added the bot.
func (p *Processor) ProcessFollow(_ webhook.FollowEvent) ([]messaging_api.MessageInterface, error) {
	p.logger.Info("New user followed the bot")
	return WelcomeMessages(p.onlineEnabled), nil
}

// ProcessJoin greets a group or room the bot was invited to.
func (p *Processor) ProcessJoin(_ webhook.JoinEvent) ([]messaging_api.MessageInterface, error) {
	p.logger.Info("Bot joined a group chat")
	return WelcomeMessages(p.onlineEnabled), nil
}

// checkUserRateLimit applies the per-user token bucket. Group chats are
// throttled silently so the bot does not spam the group.
func (p *Processor) checkUserRateLimit(source webhook.SourceInterface) (bool, []messaging_api.MessageInterface) {
	if p.userLimiter == nil {
		return true, nil
	}
	key := RateKey(source)
	if p.userLimiter.Allow(key) {
		return true, nil
	}

	logKey := key
	if len(logKey) > 8 {
		logKey = logKey[:8] + "..."
	}
	p.logger.WithField("rate_key", logKey).Warn("User rate limit exceeded")

	if !IsPersonalChat(source) {
		return false, nil
	}
	return false, []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithConsistentSender(RateLimitedText, lineutil.GetSender(lineutil.SenderSystem, "")),
	}
}

func (p *Processor) helpMessages() []messaging_api.MessageInterface {
	sender := lineutil.GetSender(lineutil.SenderAssistant, "")
	items := []lineutil.QuickReplyItem{lineutil.QuickReplyOutlineAction()}
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithQuickReply(HelpText(p.onlineEnabled), sender, items...),
	}
}

func isHelp(text string) bool {
	return slices.ContainsFunc(helpKeywords, func(k string) bool {
		return strings.EqualFold(text, k)
	})
}
