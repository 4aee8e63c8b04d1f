package lineutil

import (
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Sender display names.
const (
	SenderAssistant = "កល្យាណ"
	SenderOnline    = "កល្យាណ AI"
	SenderSystem    = "កល្យាណ ប្រព័ន្ធ"
)

// GetSender creates a sender shared by every message of one reply, so all
// bubbles show the same name and avatar. iconURL may be empty.
//
// Usage:
//
//	sender := lineutil.GetSender(lineutil.SenderAssistant, iconURL)
//	msg1 := lineutil.NewTextMessageWithConsistentSender("...", sender)
//	msg2 := lineutil.NewTextMessageWithConsistentSender("...", sender)
func GetSender(name, iconURL string) *messaging_api.Sender {
	return &messaging_api.Sender{
		Name:    TruncateRunes(name, 20),
		IconUrl: iconURL,
	}
}

// NewTextMessageWithConsistentSender creates a text message using a pre-created sender.
// LINE API limits: max 5000 characters per text message
func NewTextMessageWithConsistentSender(text string, sender *messaging_api.Sender) *messaging_api.TextMessage {
	msg := NewTextMessage(text)
	msg.Sender = sender
	return msg
}

// ErrorMessageWithSender creates a generic error reply.
func ErrorMessageWithSender(sender *messaging_api.Sender) messaging_api.MessageInterface {
	return NewTextMessageWithConsistentSender("❌ ប្រព័ន្ធមានបញ្ហាបណ្ដោះអាសន្ន។ សូមសាកល្បងម្ដងទៀតនៅពេលក្រោយ។", sender)
}
