// Package faq implements the offline school Q&A module for the LINE bot.
// It answers free text from the knowledge base, resolves outline deep links
// and shows the outline itself.
package faq

import (
	"context"
	"strings"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/bot"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/lineutil"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/logger"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/matcher"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/metrics"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/outline"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/storage"
)

// Module constants
const (
	ModuleName = "faq"

	suggestHeader = "💡 សាកល្បងសំណួរទាំងនេះ (offline):"
	relatedHeader = "🔎 សំណួរដែលពាក់ព័ន្ធ:"
	noOutlineText = "ℹ️ មិនទាន់មានបញ្ជីសំណួរ Offline ទេ។"
	outlineButton = "🌐 បើកបញ្ជីសំណួរ"

	// maxOutlineChunks keeps one of the five reply slots for the web link.
	maxOutlineChunks = 4
)

var (
	startRegex   = bot.BuildKeywordRegex([]string{"/start"})
	outlineRegex = bot.BuildKeywordRegex([]string{"/schoolinfo", "/outline"})
)

// Handler answers questions from the offline knowledge base.
type Handler struct {
	matcher *matcher.Matcher
	index   *outline.Index
	events  *bot.EventLog
	metrics *metrics.Metrics
	logger  *logger.Logger

	suggestionCount int
	relatedCount    int
	outlineURL      string
	onlineEnabled   bool
}

// NewHandler creates the faq handler. index is built from the same knowledge
// base as m.
func NewHandler(
	m *matcher.Matcher,
	index *outline.Index,
	events *bot.EventLog,
	metrics *metrics.Metrics,
	logger *logger.Logger,
	opts ...HandlerOption,
) *Handler {
	h := &Handler{
		matcher:         m,
		index:           index,
		events:          events,
		metrics:         metrics,
		logger:          logger,
		suggestionCount: 4,
		relatedCount:    4,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name returns the module name
func (h *Handler) Name() string {
	return ModuleName
}

// PostbackPrefix routes "kb:<id>" postbacks here.
func (h *Handler) PostbackPrefix() string {
	return lineutil.PostbackPrefixKB
}

// CanHandle returns true for /start and /schoolinfo.
func (h *Handler) CanHandle(text string) bool {
	text = strings.TrimSpace(text)
	return startRegex.MatchString(text) || outlineRegex.MatchString(text)
}

// HandleMessage processes /start [id] and /schoolinfo.
func (h *Handler) HandleMessage(ctx context.Context, text string) []messaging_api.MessageInterface {
	text = strings.TrimSpace(text)

	if kw := bot.MatchKeyword(startRegex, text); kw != "" {
		payload := bot.ExtractSearchTerm(text, kw)
		if payload == "" {
			return bot.WelcomeMessages(h.onlineEnabled)
		}
		// Deep links carry a single id token.
		if id, _, _ := strings.Cut(payload, " "); outline.IsID(id) {
			return h.handleDeepLink(ctx, id)
		}
		// Anything else after /start is treated as a question.
		if msgs := h.HandleFreeText(ctx, payload); len(msgs) > 0 {
			return msgs
		}
		return bot.WelcomeMessages(h.onlineEnabled)
	}

	return h.handleOutline()
}

// HandlePostback resolves an outline question id.
func (h *Handler) HandlePostback(ctx context.Context, data string) []messaging_api.MessageInterface {
	id := strings.TrimSpace(data)
	if !outline.IsID(id) {
		return nil
	}
	return h.handleDeepLink(ctx, id)
}

// HandleFreeText answers from the knowledge base, or suggests close
// questions. It returns nil when nothing is similar enough.
func (h *Handler) HandleFreeText(ctx context.Context, text string) []messaging_api.MessageInterface {
	log := h.logger.WithModule(ModuleName)
	start := time.Now()

	if res := h.matcher.BestMatch(text); res != nil {
		h.metrics.RecordMatch(metrics.OutcomeOfflineHit, res.Score, time.Since(start).Seconds())
		h.events.Record(ctx, storage.KindOfflineHit, text, res.Question, res.Score, "")
		log.WithField("score", res.Score).Debug("Offline hit")
		return h.answerMessages(text, res)
	}

	suggestions := h.matcher.TopSuggestions(text, h.suggestionCount)
	if len(suggestions) == 0 {
		return nil
	}
	h.metrics.RecordMatch(metrics.OutcomeSuggest, -1, time.Since(start).Seconds())
	h.events.Record(ctx, storage.KindSuggest, text, suggestions[0], 0, "")
	log.WithField("suggestions", len(suggestions)).Debug("Offline suggestions")

	sender := lineutil.GetSender(lineutil.SenderAssistant, "")
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithQuickReply(
			bot.FormatList(suggestHeader, suggestions),
			sender,
			lineutil.QuickReplyQuestions(suggestions)...,
		),
	}
}

// answerMessages renders a hit plus related follow-up questions.
func (h *Handler) answerMessages(question string, res *matcher.Result) []messaging_api.MessageInterface {
	sender := lineutil.GetSender(lineutil.SenderAssistant, "")
	msgs := []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithConsistentSender(bot.FormatAnswer(question, res.Answer), sender),
	}

	related := h.matcher.Related(res.Question, h.relatedCount)
	if len(related) > 0 {
		msgs = append(msgs, lineutil.NewTextMessageWithQuickReply(
			bot.FormatList(relatedHeader, related),
			sender,
			lineutil.QuickReplyQuestions(related)...,
		))
	}
	return msgs
}

func (h *Handler) handleDeepLink(ctx context.Context, id string) []messaging_api.MessageInterface {
	start := time.Now()
	sender := lineutil.GetSender(lineutil.SenderAssistant, "")

	question, known := h.index.Question(id)
	if !known {
		h.metrics.RecordMatch(metrics.OutcomeDeepLinkMiss, -1, time.Since(start).Seconds())
		h.events.Record(ctx, storage.KindDeepLinkMiss, id, "", 0, "")
		return []messaging_api.MessageInterface{
			lineutil.NewTextMessageWithQuickReply(bot.NoOfflineText, sender, lineutil.QuickReplyOutlineAction()),
		}
	}

	res := h.index.Resolve(h.matcher, id)
	if res == nil {
		h.metrics.RecordMatch(metrics.OutcomeDeepLinkMiss, -1, time.Since(start).Seconds())
		h.events.Record(ctx, storage.KindDeepLinkMiss, question, "", 0, "")
		return []messaging_api.MessageInterface{
			lineutil.NewTextMessageWithConsistentSender("❓ "+question+"\n\n"+bot.NoOfflineText, sender),
		}
	}

	h.metrics.RecordMatch(metrics.OutcomeDeepLink, res.Score, time.Since(start).Seconds())
	h.events.Record(ctx, storage.KindDeepLink, question, res.Question, res.Score, "")
	return h.answerMessages(question, res)
}

// handleOutline sends the outline text, a link to the clickable web page and
// quick replies for the first outline questions.
func (h *Handler) handleOutline() []messaging_api.MessageInterface {
	sender := lineutil.GetSender(lineutil.SenderAssistant, "")
	text := strings.TrimSpace(h.index.Outline())
	if text == "" {
		return []messaging_api.MessageInterface{
			lineutil.NewTextMessageWithConsistentSender(noOutlineText, sender),
		}
	}

	chunks := lineutil.SplitText(text, lineutil.TextListSafeBuffer)
	if len(chunks) > maxOutlineChunks {
		h.logger.WithModule(ModuleName).
			WithField("chunks", len(chunks)).
			Warn("Outline exceeds reply budget; truncating")
		chunks = chunks[:maxOutlineChunks]
	}

	msgs := make([]messaging_api.MessageInterface, 0, len(chunks)+1)
	for _, c := range chunks {
		msgs = append(msgs, lineutil.NewTextMessageWithConsistentSender(c, sender))
	}
	if h.outlineURL != "" {
		msgs = append(msgs, lineutil.SetSender(lineutil.NewButtonsTemplate(
			outlineButton,
			"",
			"ចុចលើសំណួរណាមួយ ដើម្បីទទួលចម្លើយភ្លាមៗ",
			[]lineutil.Action{lineutil.NewURIAction(outlineButton, h.outlineURL)},
		), sender))
	}

	questions := h.index.Questions()
	items := make([]lineutil.QuickReplyItem, 0, min(len(questions), lineutil.MaxQuickReplyItemCount))
	for _, q := range questions {
		if len(items) == lineutil.MaxQuickReplyItemCount {
			break
		}
		items = append(items, lineutil.QuickReplyDeepLinkAction(q, outline.QuestionID(q)))
	}
	lineutil.AddQuickReplyToMessages(msgs, items...)
	return msgs
}
