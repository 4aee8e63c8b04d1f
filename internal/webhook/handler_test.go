package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/bot"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/config"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/lineutil"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/logger"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/metrics"
)

const (
	testSecret     = "test_channel_secret"
	testReplyToken = "nHuyWiB7yP5Zw52FIkcQobQuGDXCTA"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type reply struct {
	token    string
	messages []messaging_api.MessageInterface
}

type fakeClient struct {
	mu       sync.Mutex
	replies  []reply
	loadings []string
	replyErr error
}

func (f *fakeClient) Reply(token string, messages []messaging_api.MessageInterface) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply{token: token, messages: messages})
	return f.replyErr
}

func (f *fakeClient) ShowLoading(chatID string, _ int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadings = append(f.loadings, chatID)
	return nil
}

// echoHandler answers "/echo <n>" with n text messages.
type echoHandler struct{}

func (echoHandler) Name() string               { return "echo" }
func (echoHandler) CanHandle(text string) bool { return strings.HasPrefix(text, "/echo") }
func (echoHandler) PostbackPrefix() string     { return "echo:" }

func (echoHandler) HandleMessage(_ context.Context, text string) []messaging_api.MessageInterface {
	n := 1
	_, _ = fmt.Sscanf(strings.TrimPrefix(text, "/echo"), "%d", &n)
	msgs := make([]messaging_api.MessageInterface, n)
	for i := range msgs {
		msgs[i] = lineutil.NewTextMessage(fmt.Sprintf("echo %d", i+1))
	}
	return msgs
}

func (echoHandler) HandlePostback(_ context.Context, data string) []messaging_api.MessageInterface {
	return []messaging_api.MessageInterface{lineutil.NewTextMessage("postback " + data)}
}

func testBotConfig() *config.BotConfig {
	return &config.BotConfig{
		WebhookTimeout:      5 * time.Second,
		MaxMessagesPerReply: 5,
		MaxEventsPerWebhook: 2,
		MinReplyTokenLength: 10,
		MaxMessageLength:    2000,
		MaxPostbackDataSize: 300,
		GlobalRateRPS:       100,
	}
}

func setupTestHandler(t *testing.T) (*Handler, *fakeClient) {
	t.Helper()
	log := logger.NewWithWriter("error", io.Discard)
	m := metrics.New(prometheus.NewRegistry())

	registry := bot.NewRegistry(log)
	registry.Register(echoHandler{})

	cfg := testBotConfig()
	processor := bot.NewProcessor(bot.ProcessorConfig{
		Registry:  registry,
		Logger:    log,
		Metrics:   m,
		BotConfig: cfg,
	})

	client := &fakeClient{}
	h, err := NewHandler(HandlerConfig{
		ChannelSecret: testSecret,
		BotConfig:     cfg,
		Metrics:       m,
		Logger:        log,
		Processor:     processor,
	}, WithClient(client))
	require.NoError(t, err)
	return h, client
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func textEventJSON(source, text string) string {
	return fmt.Sprintf(`{
		"type": "message",
		"mode": "active",
		"timestamp": 1700000000000,
		"source": %s,
		"webhookEventId": "01HTESTEVENT",
		"deliveryContext": {"isRedelivery": false},
		"replyToken": %q,
		"message": {"type": "text", "id": "1", "quoteToken": "qt", "text": %q}
	}`, source, testReplyToken, text)
}

const userSource = `{"type": "user", "userId": "U1234567890"}`
const groupSource = `{"type": "group", "groupId": "G1234567890", "userId": "U1234567890"}`

func callbackBody(events ...string) string {
	return `{"destination": "Ubot", "events": [` + strings.Join(events, ",") + `]}`
}

func serve(t *testing.T, h *Handler, body, signature string) int {
	t.Helper()
	router := gin.New()
	router.POST("/webhook", h.Handle)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Line-Signature", signature)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))
	return w.Code
}

func replyTexts(t *testing.T, r reply) []string {
	t.Helper()
	out := make([]string, len(r.messages))
	for i, m := range r.messages {
		tm, ok := m.(*messaging_api.TextMessage)
		require.True(t, ok)
		out[i] = tm.Text
	}
	return out
}

func TestHandleInvalidSignature(t *testing.T) {
	t.Parallel()
	h, client := setupTestHandler(t)

	body := callbackBody(textEventJSON(userSource, "/echo"))
	assert.Equal(t, http.StatusBadRequest, serve(t, h, body, "invalid"))
	assert.Empty(t, client.replies)
}

func TestHandleRepliesToCommand(t *testing.T) {
	t.Parallel()
	h, client := setupTestHandler(t)

	body := callbackBody(textEventJSON(userSource, "/echo 2"))
	require.Equal(t, http.StatusOK, serve(t, h, body, sign(body)))

	require.Len(t, client.replies, 1)
	assert.Equal(t, testReplyToken, client.replies[0].token)
	assert.Equal(t, []string{"echo 1", "echo 2"}, replyTexts(t, client.replies[0]))
	assert.Equal(t, []string{"U1234567890"}, client.loadings)
}

func TestHandleCapsMessagesPerReply(t *testing.T) {
	t.Parallel()
	h, client := setupTestHandler(t)

	body := callbackBody(textEventJSON(userSource, "/echo 7"))
	require.Equal(t, http.StatusOK, serve(t, h, body, sign(body)))

	require.Len(t, client.replies, 1)
	texts := replyTexts(t, client.replies[0])
	require.Len(t, texts, 5)
	assert.Equal(t, "echo 4", texts[3])
	assert.Equal(t, truncatedNotice, texts[4])
}

func TestHandleGroupChatterIsIgnored(t *testing.T) {
	t.Parallel()
	h, client := setupTestHandler(t)

	body := callbackBody(textEventJSON(groupSource, "good morning everyone"))
	require.Equal(t, http.StatusOK, serve(t, h, body, sign(body)))

	assert.Empty(t, client.replies)
	assert.Empty(t, client.loadings)
}

func TestHandleTruncatesEventBatch(t *testing.T) {
	t.Parallel()
	h, client := setupTestHandler(t)

	event := textEventJSON(userSource, "/echo")
	body := callbackBody(event, event, event)
	require.Equal(t, http.StatusOK, serve(t, h, body, sign(body)))

	assert.Len(t, client.replies, 2)
}

func TestHandleReplyErrorIsContained(t *testing.T) {
	t.Parallel()
	h, client := setupTestHandler(t)
	client.replyErr = errors.New("Invalid reply token")

	body := callbackBody(textEventJSON(userSource, "/echo"))
	require.Equal(t, http.StatusOK, serve(t, h, body, sign(body)))
	assert.Len(t, client.replies, 1)
}

func TestShouldShowLoading(t *testing.T) {
	t.Parallel()
	user := webhook.UserSource{UserId: "U1"}
	group := webhook.GroupSource{GroupId: "G1", UserId: "U1"}
	selfMention := &webhook.Mention{Mentionees: []webhook.MentioneeInterface{
		webhook.UserMentionee{Index: 0, Length: 4, IsSelf: true},
	}}

	tests := []struct {
		name  string
		event webhook.EventInterface
		want  bool
	}{
		{"personal text", webhook.MessageEvent{Source: user, Message: webhook.TextMessageContent{Text: "hi"}}, true},
		{"group chatter", webhook.MessageEvent{Source: group, Message: webhook.TextMessageContent{Text: "hi"}}, false},
		{"group command", webhook.MessageEvent{Source: group, Message: webhook.TextMessageContent{Text: "/help"}}, true},
		{"group mention", webhook.MessageEvent{Source: group, Message: webhook.TextMessageContent{Text: "@Bot hi", Mention: selfMention}}, true},
		{"sticker", webhook.MessageEvent{Source: user, Message: webhook.StickerMessageContent{}}, false},
		{"postback", webhook.PostbackEvent{Source: user}, true},
		{"follow", webhook.FollowEvent{Source: user}, true},
		{"unfollow", webhook.UnfollowEvent{Source: user}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, shouldShowLoading(tt.event))
		})
	}
}

func TestGetReplyToken(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "tok", getReplyToken(webhook.MessageEvent{ReplyToken: "tok"}))
	assert.Equal(t, "tok", getReplyToken(webhook.JoinEvent{ReplyToken: "tok"}))
	assert.Empty(t, getReplyToken(webhook.UnfollowEvent{}))
}

func TestWithLoadingSeconds(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want int32
	}{
		{0, 5},
		{7, 5},
		{30, 30},
		{120, 60},
	}
	for _, tt := range tests {
		h := &Handler{}
		WithLoadingSeconds(tt.in)(h)
		assert.Equal(t, tt.want, h.loadingSeconds, "input %d", tt.in)
	}
}

func TestShutdownTimesOut(t *testing.T) {
	t.Parallel()
	h := &Handler{}
	h.wg.Add(1)
	defer h.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Shutdown(ctx), context.DeadlineExceeded)
}
