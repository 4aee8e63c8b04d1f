package faq

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/bot"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/ctxutil"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/knowledge"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/logger"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/matcher"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/outline"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/storage"
)

const (
	qHours = "សាលាបើកម៉ោងប៉ុន្មាន"
	aHours = "សាលាបើកពីម៉ោង ៧ ព្រឹក ដល់ ៥ ល្ងាច។"
	qPhone = "លេខទូរស័ព្ទសាលា"
	aPhone = "012 345 678"
	qLab   = "តើមានថ្នាក់កុំព្យូទ័រទេ"
	aLab   = "មាន បន្ទប់កុំព្យូទ័រនៅជាន់ទី២។"

	qOrphan = "zzz qqq"
)

var testOutline = strings.Join([]string{
	"📚 សំណួរញឹកញាប់",
	"- " + qHours,
	"• " + qPhone,
	"- " + qOrphan,
}, "\n")

type recorder struct {
	mu     sync.Mutex
	events []storage.QAEvent
}

func (r *recorder) RecordEvent(_ context.Context, e *storage.QAEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *e)
	return nil
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func newTestHandler(t *testing.T, opts ...matcher.Option) (*Handler, *recorder) {
	t.Helper()
	kb, err := knowledge.FromEntries("test", testOutline, []knowledge.Entry{
		{Question: qHours, Answer: aHours},
		{Question: qPhone, Answer: aPhone},
		{Question: qLab, Answer: aLab},
	})
	require.NoError(t, err)

	log := logger.NewWithWriter("error", io.Discard)
	rec := &recorder{}
	h := NewHandler(
		matcher.New(kb, opts...),
		outline.NewIndex(kb.Outline()),
		bot.NewEventLog(rec, nil, log),
		nil,
		log,
		WithOutlineURL("https://kalyan.example.com/outline"),
	)
	return h, rec
}

func textOf(t *testing.T, msg messaging_api.MessageInterface) string {
	t.Helper()
	tm, ok := msg.(*messaging_api.TextMessage)
	require.True(t, ok, "expected text message, got %T", msg)
	return tm.Text
}

func TestHandler_CanHandle(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandler(t)

	tests := []struct {
		input string
		want  bool
	}{
		{"/start", true},
		{"/start q0123456789", true},
		{"/schoolinfo", true},
		{"/SchoolInfo", true},
		{"/outline", true},
		{"/starter", false},
		{"/ask hi", false},
		{qHours, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, h.CanHandle(tt.input))
		})
	}
}

func TestHandler_FreeTextHit(t *testing.T) {
	t.Parallel()
	h, rec := newTestHandler(t)
	ctx := ctxutil.WithUserID(context.Background(), "U1")

	msgs := h.HandleFreeText(ctx, qHours+"?")
	require.NotEmpty(t, msgs)
	assert.Equal(t, bot.FormatAnswer(qHours+"?", aHours), textOf(t, msgs[0]))
	assert.Equal(t, []string{storage.KindOfflineHit}, rec.kinds())
	assert.Equal(t, "U1", rec.events[0].UserID)
	assert.Equal(t, qHours, rec.events[0].Matched)

	if len(msgs) > 1 {
		related := textOf(t, msgs[1])
		assert.True(t, strings.HasPrefix(related, relatedHeader))
		assert.NotContains(t, related, "• "+qHours+"\n")
	}
}

func TestHandler_FreeTextSuggestions(t *testing.T) {
	t.Parallel()
	// An unreachable threshold turns every query into a suggestion.
	h, rec := newTestHandler(t, matcher.WithThreshold(matcher.MaxScore+1))

	msgs := h.HandleFreeText(context.Background(), qPhone)
	require.Len(t, msgs, 1)
	text := textOf(t, msgs[0])
	assert.True(t, strings.HasPrefix(text, suggestHeader))
	assert.Contains(t, text, "• "+qPhone)

	tm := msgs[0].(*messaging_api.TextMessage)
	require.NotNil(t, tm.QuickReply)
	assert.NotEmpty(t, tm.QuickReply.Items)
	assert.Equal(t, []string{storage.KindSuggest}, rec.kinds())
}

func TestHandler_FreeTextMiss(t *testing.T) {
	t.Parallel()
	h, rec := newTestHandler(t)

	assert.Nil(t, h.HandleFreeText(context.Background(), "xyz"))
	assert.Nil(t, h.HandleFreeText(context.Background(), "។។។"))
	assert.Empty(t, rec.kinds())
}

func TestHandler_DeepLink(t *testing.T) {
	t.Parallel()

	t.Run("resolves outline id", func(t *testing.T) {
		t.Parallel()
		h, rec := newTestHandler(t)
		msgs := h.HandleMessage(context.Background(), "/start "+outline.QuestionID(qHours))
		require.NotEmpty(t, msgs)
		assert.Equal(t, bot.FormatAnswer(qHours, aHours), textOf(t, msgs[0]))
		assert.Equal(t, []string{storage.KindDeepLink}, rec.kinds())
	})

	t.Run("postback resolves the same id", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		msgs := h.HandlePostback(context.Background(), outline.QuestionID(qPhone))
		require.NotEmpty(t, msgs)
		assert.Equal(t, bot.FormatAnswer(qPhone, aPhone), textOf(t, msgs[0]))
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()
		h, rec := newTestHandler(t)
		msgs := h.HandleMessage(context.Background(), "/start q0000000000")
		require.Len(t, msgs, 1)
		assert.Equal(t, bot.NoOfflineText, textOf(t, msgs[0]))
		assert.Equal(t, []string{storage.KindDeepLinkMiss}, rec.kinds())
	})

	t.Run("outline question without answer", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		msgs := h.HandleMessage(context.Background(), "/start "+outline.QuestionID(qOrphan))
		require.Len(t, msgs, 1)
		assert.Equal(t, "❓ "+qOrphan+"\n\n"+bot.NoOfflineText, textOf(t, msgs[0]))
	})

	t.Run("malformed postback is ignored", func(t *testing.T) {
		t.Parallel()
		h, _ := newTestHandler(t)
		assert.Nil(t, h.HandlePostback(context.Background(), "not-an-id"))
	})
}

func TestHandler_StartWelcome(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandler(t)

	msgs := h.HandleMessage(context.Background(), "/start")
	require.Len(t, msgs, 1)
	assert.Equal(t, bot.WelcomeText(false), textOf(t, msgs[0]))
}

func TestHandler_Outline(t *testing.T) {
	t.Parallel()
	h, _ := newTestHandler(t)

	msgs := h.HandleMessage(context.Background(), "/schoolinfo")
	require.Len(t, msgs, 2)
	assert.Equal(t, testOutline, textOf(t, msgs[0]))

	tmpl, ok := msgs[1].(*messaging_api.TemplateMessage)
	require.True(t, ok)
	require.NotNil(t, tmpl.QuickReply)
	require.Len(t, tmpl.QuickReply.Items, 3)

	action, ok := tmpl.QuickReply.Items[0].Action.(*messaging_api.PostbackAction)
	require.True(t, ok)
	assert.Equal(t, "kb:"+outline.QuestionID(qHours), action.Data)
}

func TestHandler_EmptyOutline(t *testing.T) {
	t.Parallel()
	kb, err := knowledge.FromEntries("test", "", []knowledge.Entry{{Question: qHours, Answer: aHours}})
	require.NoError(t, err)
	log := logger.NewWithWriter("error", io.Discard)
	h := NewHandler(matcher.New(kb), outline.NewIndex(""), nil, nil, log)

	msgs := h.HandleMessage(context.Background(), "/schoolinfo")
	require.Len(t, msgs, 1)
	assert.Equal(t, noOutlineText, textOf(t, msgs[0]))
}
