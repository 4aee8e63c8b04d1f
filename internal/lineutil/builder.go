// Package lineutil provides utility functions for building LINE messages and actions.
package lineutil

import (
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// QuickReplyItem represents an item in a quick reply.
type QuickReplyItem struct {
	ImageURL string
	Action   messaging_api.ActionInterface
}

// Action is an alias for the LINE SDK action interface for convenience.
type Action = messaging_api.ActionInterface

// PostbackPrefixKB marks postback data that carries an outline question id.
const PostbackPrefixKB = "kb:"

// NewTextMessage creates a simple text message without sender information.
// Text longer than the LINE limit is truncated with an ellipsis.
func NewTextMessage(text string) *messaging_api.TextMessage {
	if len([]rune(text)) > MaxTextMessageLength {
		text = TruncateRunes(text, MaxTextMessageLength-1) + "…"
	}
	return &messaging_api.TextMessage{
		Text: text,
	}
}

// NewButtonsTemplate creates a buttons template message.
// LINE API limits: max 4 actions, text max 160 chars, title max 40 chars
func NewButtonsTemplate(altText, title, text string, actions []Action) *messaging_api.TemplateMessage {
	if len(actions) > MaxTemplateActionCount {
		actions = actions[:MaxTemplateActionCount]
	}
	if len([]rune(text)) > MaxTemplateTextNoImage {
		text = TruncateRunes(text, MaxTemplateTextNoImage-1) + "…"
	}
	if len([]rune(title)) > MaxTemplateTitleLength {
		title = TruncateRunes(title, MaxTemplateTitleLength-1) + "…"
	}
	if len([]rune(altText)) > MaxAltTextLength {
		altText = TruncateRunes(altText, MaxAltTextLength-1) + "…"
	}

	template := &messaging_api.ButtonsTemplate{
		Text:    text,
		Actions: actions,
	}
	if title != "" {
		template.Title = title
	}

	return &messaging_api.TemplateMessage{
		AltText:  altText,
		Template: template,
	}
}

// NewQuickReply creates a quick reply message component.
// LINE API limits: max 13 items
func NewQuickReply(items []QuickReplyItem) *messaging_api.QuickReply {
	if len(items) > MaxQuickReplyItemCount {
		items = items[:MaxQuickReplyItemCount]
	}

	quickReplyItems := make([]messaging_api.QuickReplyItem, len(items))
	for i, item := range items {
		qrItem := messaging_api.QuickReplyItem{
			Action: item.Action,
		}
		if item.ImageURL != "" {
			qrItem.ImageUrl = item.ImageURL
		}
		quickReplyItems[i] = qrItem
	}

	return &messaging_api.QuickReply{
		Items: quickReplyItems,
	}
}

// NewMessageAction creates a message action that sends text when clicked.
// The label is shortened to the LINE label limit.
func NewMessageAction(label, text string) Action {
	return &messaging_api.MessageAction{
		Label: Label(label),
		Text:  text,
	}
}

// NewPostbackActionWithDisplayText creates a postback action with custom display text.
func NewPostbackActionWithDisplayText(label, displayText, data string) Action {
	return &messaging_api.PostbackAction{
		Label:       Label(label),
		DisplayText: displayText,
		Data:        data,
	}
}

// NewURIAction creates a URI action that opens a URL when clicked.
func NewURIAction(label, uri string) Action {
	return &messaging_api.UriAction{
		Label: Label(label),
		Uri:   uri,
	}
}

// Label shortens s to the LINE action label limit.
func Label(s string) string {
	if len([]rune(s)) <= MaxQuickReplyLabel {
		return s
	}
	return TruncateRunes(s, MaxQuickReplyLabel-1) + "…"
}

// TruncateRunes returns at most maxRunes runes of text.
func TruncateRunes(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}

// SplitText breaks text into chunks of at most maxRunes runes, cutting at
// line breaks where possible. A single line longer than maxRunes is cut hard.
func SplitText(text string, maxRunes int) []string {
	if maxRunes <= 0 || text == "" {
		return nil
	}
	if len([]rune(text)) <= maxRunes {
		return []string{text}
	}

	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
			curLen = 0
		}
	}

	for line := range strings.SplitSeq(text, "\n") {
		runes := []rune(line)
		for len(runes) > maxRunes {
			flush()
			chunks = append(chunks, string(runes[:maxRunes]))
			runes = runes[maxRunes:]
		}
		if curLen+len(runes)+1 > maxRunes {
			flush()
		}
		cur.WriteString(string(runes))
		cur.WriteByte('\n')
		curLen += len(runes) + 1
	}
	flush()
	return chunks
}

// SetSender sets the Sender field on a message.
// Supports: TextMessage, TemplateMessage
func SetSender(msg messaging_api.MessageInterface, sender *messaging_api.Sender) messaging_api.MessageInterface {
	if sender == nil {
		return msg
	}
	switch m := msg.(type) {
	case *messaging_api.TextMessage:
		m.Sender = sender
	case *messaging_api.TemplateMessage:
		m.Sender = sender
	}
	return msg
}

// ================================================
// Common QuickReply Actions
// ================================================

// QuickReplyHelpAction returns a "/help" quick reply item.
func QuickReplyHelpAction() QuickReplyItem {
	return QuickReplyItem{Action: NewMessageAction("📖 ជំនួយ", "/help")}
}

// QuickReplyOutlineAction returns a "/schoolinfo" quick reply item.
func QuickReplyOutlineAction() QuickReplyItem {
	return QuickReplyItem{Action: NewMessageAction("🏫 សំណួរសាលា", "/schoolinfo")}
}

// QuickReplyQuestionAction sends question back as if the user typed it.
func QuickReplyQuestionAction(question string) QuickReplyItem {
	return QuickReplyItem{Action: NewMessageAction(question, question)}
}

// QuickReplyDeepLinkAction resolves an outline question id through a postback.
func QuickReplyDeepLinkAction(question, id string) QuickReplyItem {
	return QuickReplyItem{Action: NewPostbackActionWithDisplayText(question, question, PostbackPrefixKB+id)}
}

// QuickReplyQuestions turns questions into message quick replies.
func QuickReplyQuestions(questions []string) []QuickReplyItem {
	items := make([]QuickReplyItem, 0, len(questions))
	for _, q := range questions {
		items = append(items, QuickReplyQuestionAction(q))
	}
	return items
}

// NewTextMessageWithQuickReply creates a text message with quick reply items.
func NewTextMessageWithQuickReply(text string, sender *messaging_api.Sender, items ...QuickReplyItem) *messaging_api.TextMessage {
	msg := NewTextMessageWithConsistentSender(text, sender)
	if len(items) > 0 {
		msg.QuickReply = NewQuickReply(items)
	}
	return msg
}

// AddQuickReplyToMessages attaches quick reply items to the last message in a slice.
// If the slice is empty or the last message doesn't support quick replies, it's a no-op.
func AddQuickReplyToMessages(messages []messaging_api.MessageInterface, items ...QuickReplyItem) {
	if len(messages) == 0 || len(items) == 0 {
		return
	}
	qr := NewQuickReply(items)
	switch m := messages[len(messages)-1].(type) {
	case *messaging_api.TextMessage:
		m.QuickReply = qr
	case *messaging_api.TemplateMessage:
		m.QuickReply = qr
	}
}
