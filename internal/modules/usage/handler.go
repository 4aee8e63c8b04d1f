// Package usage implements the quota query module for the LINE bot.
// It tells users how many messages and online (AI) answers they have left.
package usage

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/bot"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/ctxutil"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/lineutil"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/logger"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/ratelimit"
)

// Module constants
const (
	ModuleName     = "usage"
	postbackPrefix = "usage:"
)

var usageRegex = bot.BuildKeywordRegex([]string{"/quota", "/usage", "កូតា"})

// Handler handles quota queries.
type Handler struct {
	userLimiter *ratelimit.KeyedLimiter
	llmLimiter  *ratelimit.KeyedLimiter
	logger      *logger.Logger
}

// NewHandler creates a new usage handler. Either limiter may be nil.
func NewHandler(userLimiter, llmLimiter *ratelimit.KeyedLimiter, logger *logger.Logger) *Handler {
	return &Handler{
		userLimiter: userLimiter,
		llmLimiter:  llmLimiter,
		logger:      logger,
	}
}

// Name returns the module name
func (h *Handler) Name() string {
	return ModuleName
}

// PostbackPrefix returns the module's postback prefix.
func (h *Handler) PostbackPrefix() string {
	return postbackPrefix
}

// CanHandle returns true if the text matches a usage keyword.
func (h *Handler) CanHandle(text string) bool {
	return usageRegex.MatchString(strings.TrimSpace(text))
}

// HandleMessage replies with the caller's quota.
func (h *Handler) HandleMessage(ctx context.Context, _ string) []messaging_api.MessageInterface {
	h.logger.WithModule(ModuleName).Debug("Handling usage query")

	key := rateKey(ctx)
	var userStats, llmStats *ratelimit.UsageStats
	if h.userLimiter != nil {
		s := h.userLimiter.GetUsageStats(key)
		userStats = &s
	}
	if h.llmLimiter != nil {
		s := h.llmLimiter.GetUsageStats(key)
		llmStats = &s
	}

	sender := lineutil.GetSender(lineutil.SenderSystem, "")
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithQuickReply(formatUsage(userStats, llmStats), sender,
			lineutil.QuickReplyOutlineAction(),
			lineutil.QuickReplyHelpAction(),
		),
	}
}

// HandlePostback handles "usage:query".
func (h *Handler) HandlePostback(ctx context.Context, data string) []messaging_api.MessageInterface {
	if data == "query" {
		return h.HandleMessage(ctx, "")
	}
	return nil
}

// rateKey matches the key the processor and online module limit on.
func rateKey(ctx context.Context) string {
	if id := ctxutil.GetUserID(ctx); id != "" {
		return id
	}
	return ctxutil.GetChatID(ctx)
}

func formatUsage(userStats, llmStats *ratelimit.UsageStats) string {
	var b strings.Builder
	b.WriteString("📊 កូតារបស់អ្នក")

	if userStats != nil {
		fmt.Fprintf(&b, "\n\n⚡ សារ: %d / %d", int(math.Floor(userStats.BurstAvailable)), int(userStats.BurstMax))
		if userStats.BurstRefillRate > 0 {
			fmt.Fprintf(&b, "\n💡 បន្ថែម 1 រៀងរាល់ %.0f វិនាទី", 1/userStats.BurstRefillRate)
		}
	}

	if llmStats != nil {
		fmt.Fprintf(&b, "\n\n🤖 សំណួរ AI: %d / %d", int(math.Floor(llmStats.BurstAvailable)), int(llmStats.BurstMax))
		fmt.Fprintf(&b, "\n💡 បន្ថែម %.0f ក្នុងមួយម៉ោង", llmStats.BurstRefillRate*3600)
		if llmStats.DailyMax > 0 {
			fmt.Fprintf(&b, "\n📅 ថ្ងៃនេះនៅសល់: %d / %d", llmStats.DailyRemaining, llmStats.DailyMax)
		}
	}

	if userStats == nil && llmStats == nil {
		b.WriteString("\n\n✅ មិនមានដែនកំណត់ទេ")
	}
	return b.String()
}
