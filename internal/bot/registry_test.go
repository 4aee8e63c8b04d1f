package bot

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/lineutil"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/logger"
)

// stubHandler owns one command and optionally answers free text.
type stubHandler struct {
	name     string
	command  string
	prefix   string
	reply    string
	freeText string
	panics   bool
	seen     []string
}

func (s *stubHandler) Name() string { return s.name }

func (s *stubHandler) CanHandle(text string) bool {
	return s.command != "" && strings.HasPrefix(text, s.command)
}

func (s *stubHandler) HandleMessage(_ context.Context, text string) []messaging_api.MessageInterface {
	s.seen = append(s.seen, text)
	if s.panics {
		panic("boom")
	}
	return texts(s.reply)
}

func (s *stubHandler) PostbackPrefix() string { return s.prefix }

func (s *stubHandler) HandlePostback(_ context.Context, data string) []messaging_api.MessageInterface {
	s.seen = append(s.seen, data)
	return texts(s.reply + ":" + data)
}

// freeTextStub adds HandleFreeText to stubHandler.
type freeTextStub struct {
	*stubHandler
}

func (s freeTextStub) HandleFreeText(_ context.Context, text string) []messaging_api.MessageInterface {
	s.seen = append(s.seen, "free:"+text)
	if s.panics {
		panic("boom")
	}
	if s.freeText == "" {
		return nil
	}
	return texts(s.freeText)
}

func texts(s ...string) []messaging_api.MessageInterface {
	out := make([]messaging_api.MessageInterface, len(s))
	for i, t := range s {
		out[i] = lineutil.NewTextMessage(t)
	}
	return out
}

func firstText(t *testing.T, msgs []messaging_api.MessageInterface) string {
	t.Helper()
	require.NotEmpty(t, msgs)
	tm, ok := msgs[0].(*messaging_api.TextMessage)
	require.True(t, ok, "expected text message, got %T", msgs[0])
	return tm.Text
}

func testLogger() *logger.Logger {
	return logger.NewWithWriter("error", io.Discard)
}

func TestRegistry_DispatchMessage(t *testing.T) {
	t.Parallel()
	r := NewRegistry(testLogger())
	a := &stubHandler{name: "a", command: "/a", reply: "A"}
	b := &stubHandler{name: "b", command: "/b", reply: "B"}
	r.Register(a)
	r.Register(b)

	assert.Equal(t, "B", firstText(t, r.DispatchMessage(context.Background(), "/b x")))
	assert.Nil(t, r.DispatchMessage(context.Background(), "/c"))
	assert.Same(t, a, r.GetHandler("a"))
	assert.Nil(t, r.GetHandler("missing"))
}

func TestRegistry_DispatchPostback(t *testing.T) {
	t.Parallel()
	r := NewRegistry(testLogger())
	r.Register(&stubHandler{name: "none", reply: "N"})
	r.Register(&stubHandler{name: "kb", prefix: "kb:", reply: "KB"})

	assert.Equal(t, "KB:q123", firstText(t, r.DispatchPostback(context.Background(), "kb:q123")))
	assert.Nil(t, r.DispatchPostback(context.Background(), "usage:query"))
}

func TestRegistry_DispatchFreeText(t *testing.T) {
	t.Parallel()

	t.Run("first reply wins", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry(testLogger())
		first := freeTextStub{&stubHandler{name: "faq"}}
		second := freeTextStub{&stubHandler{name: "online", freeText: "online"}}
		third := freeTextStub{&stubHandler{name: "never", freeText: "never"}}
		r.Register(first)
		r.Register(&stubHandler{name: "plain", reply: "plain"})
		r.Register(second)
		r.Register(third)

		assert.Equal(t, "online", firstText(t, r.DispatchFreeText(context.Background(), "hi")))
		assert.Equal(t, []string{"free:hi"}, first.seen)
		assert.Empty(t, third.seen)
	})

	t.Run("stops on canceled context", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry(testLogger())
		first := freeTextStub{&stubHandler{name: "faq"}}
		second := freeTextStub{&stubHandler{name: "online", freeText: "online"}}
		r.Register(first)
		r.Register(second)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Nil(t, r.DispatchFreeText(ctx, "hi"))
		assert.Empty(t, second.seen)
	})

	t.Run("panic is contained", func(t *testing.T) {
		t.Parallel()
		r := NewRegistry(testLogger())
		r.Register(freeTextStub{&stubHandler{name: "bad", panics: true}})
		r.Register(freeTextStub{&stubHandler{name: "good", freeText: "ok"}})

		assert.Equal(t, "ok", firstText(t, r.DispatchFreeText(context.Background(), "hi")))
	})
}

func TestRegistry_PanicInCommand(t *testing.T) {
	t.Parallel()
	r := NewRegistry(nil)
	r.Register(&stubHandler{name: "bad", command: "/bad", panics: true})

	assert.NotPanics(t, func() {
		assert.Nil(t, r.DispatchMessage(context.Background(), "/bad"))
	})
}
