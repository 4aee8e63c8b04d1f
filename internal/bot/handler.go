// Package bot provides the handler interface and utilities for LINE bot modules.
// Each module (faq, online, usage) implements the Handler interface to process
// user messages and postback events.
package bot

import (
	"context"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Handler defines the interface that all bot modules must implement
type Handler interface {
	// Name identifies the module in logs.
	Name() string

	// CanHandle reports whether text is a command this module owns.
	CanHandle(text string) bool

	// HandleMessage processes a command and returns LINE messages (max 5 per reply).
	HandleMessage(ctx context.Context, text string) []messaging_api.MessageInterface

	// PostbackPrefix is the data prefix routed to HandlePostback ("" = none).
	PostbackPrefix() string

	// HandlePostback receives postback data with the prefix removed.
	// LINE caps postback data at 300 bytes.
	HandlePostback(ctx context.Context, data string) []messaging_api.MessageInterface
}

// FreeTextHandler answers plain text that no command claimed. It returns nil
// when it has nothing to say so the next handler in the chain can try.
type FreeTextHandler interface {
	HandleFreeText(ctx context.Context, text string) []messaging_api.MessageInterface
}
