package webhook

import (
	"fmt"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// defaultLoadingSeconds is the longest loading animation LINE allows,
// matching config.WebhookProcessing.
const defaultLoadingSeconds int32 = 60

// Client is the part of the Messaging API the webhook handler uses.
type Client interface {
	Reply(replyToken string, messages []messaging_api.MessageInterface) error
	ShowLoading(chatID string, seconds int32) error
}

// MessagingClient sends replies through the LINE Messaging API.
type MessagingClient struct {
	api *messaging_api.MessagingApiAPI
}

// NewMessagingClient creates a Messaging API client for the channel token.
func NewMessagingClient(channelToken string) (*MessagingClient, error) {
	api, err := messaging_api.NewMessagingApiAPI(channelToken)
	if err != nil {
		return nil, fmt.Errorf("create messaging API client: %w", err)
	}
	return &MessagingClient{api: api}, nil
}

// Reply sends messages with a reply token.
func (c *MessagingClient) Reply(replyToken string, messages []messaging_api.MessageInterface) error {
	_, err := c.api.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	})
	return err
}

// ShowLoading starts the loading animation in a chat. LINE accepts 5-60
// seconds in steps of 5.
func (c *MessagingClient) ShowLoading(chatID string, seconds int32) error {
	if _, err := c.api.ShowLoadingAnimation(&messaging_api.ShowLoadingAnimationRequest{
		ChatId:         chatID,
		LoadingSeconds: seconds,
	}); err != nil {
		return fmt.Errorf("show loading animation: %w", err)
	}
	return nil
}

// HandlerOption is a functional option for configuring Handler.
type HandlerOption func(*Handler)

// WithClient replaces the Messaging API client, mainly for tests.
func WithClient(c Client) HandlerOption {
	return func(h *Handler) {
		h.client = c
	}
}

// WithLoadingSeconds sets the loading animation length, rounded down to a
// multiple of 5 within 5-60.
func WithLoadingSeconds(seconds int32) HandlerOption {
	return func(h *Handler) {
		seconds = min(max(seconds, 5), 60)
		h.loadingSeconds = seconds - seconds%5
	}
}
