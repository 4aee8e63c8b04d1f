package bot

import (
	"slices"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// IsBotMentioned reports whether a UserMentionee with IsSelf == true is present.
func IsBotMentioned(textMsg webhook.TextMessageContent) bool {
	if textMsg.Mention == nil {
		return false
	}
	for _, mentionee := range textMsg.Mention.Mentionees {
		if m, ok := mentionee.(webhook.UserMentionee); ok && m.IsSelf {
			return true
		}
	}
	return false
}

type mentionSpan struct {
	index  int32
	length int32
}

// RemoveBotMentions cuts every self mention out of text. LINE reports
// mention offsets in runes; spans are removed back to front so earlier
// offsets stay valid.
func RemoveBotMentions(text string, mention *webhook.Mention) string {
	if mention == nil || len(mention.Mentionees) == 0 {
		return text
	}

	var spans []mentionSpan
	for _, mentionee := range mention.Mentionees {
		if m, ok := mentionee.(webhook.UserMentionee); ok && m.IsSelf {
			spans = append(spans, mentionSpan{index: m.Index, length: m.Length})
		}
	}
	if len(spans) == 0 {
		return text
	}

	slices.SortFunc(spans, func(a, b mentionSpan) int {
		return int(b.index - a.index)
	})

	runes := []rune(text)
	for _, s := range spans {
		start := max(int(s.index), 0)
		end := min(int(s.index+s.length), len(runes))
		if start >= end {
			continue
		}
		runes = append(runes[:start], runes[end:]...)
	}

	return strings.Join(strings.Fields(string(runes)), " ")
}
