package bot

import (
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/lineutil"
)

// User-facing replies shared by the modules.
const (
	MissText           = "❌ ខ្ញុំមិនទាន់យល់សំណួរនេះទេ។ សូមសាកល្បងសរសេរឡើងវិញ!"
	NoOfflineText      = "❌ មិនមានចម្លើយ Offline។"
	RateLimitedText    = "⏳ អ្នកផ្ញើសារញឹកញាប់ពេក។ សូមរង់ចាំបន្តិចសិន។"
	MessageTooLongText = "❌ សារវែងពេក។ សូមសរសេរឲ្យខ្លីជាងនេះ។"
	PostbackStaleText  = "⌛ ប៊ូតុងនេះហួសសុពលភាពហើយ។ សូមវាយ /schoolinfo ម្ដងទៀត។"
)

// FormatAnswer renders an answer as "❓ question\n\n📜 answer".
func FormatAnswer(question, answer string) string {
	return "❓ " + question + "\n\n📜 " + answer
}

// FormatList renders a header followed by bullet lines.
func FormatList(header string, items []string) string {
	var b strings.Builder
	b.WriteString(header)
	for _, it := range items {
		b.WriteString("\n• ")
		b.WriteString(it)
	}
	return b.String()
}

// WelcomeText is the greeting for /start, follow and join. Online commands
// are listed only when an LLM provider is configured.
func WelcomeText(onlineEnabled bool) string {
	var b strings.Builder
	b.WriteString("🤖 ស្វាគមន៍មកកាន់ កល្យាណ\n\n")
	b.WriteString("អ្វីដែលខ្ញុំអាចធ្វើបាន:\n")
	if onlineEnabled {
		b.WriteString("• ឆ្លើយសំណួរអំពីប្រធានបទណាមួយ\n")
	}
	b.WriteString("• ព័ត៌មាន Offline អំពីសាលា NGS PREAKLEAP\n\n")
	b.WriteString(commandList(onlineEnabled))
	b.WriteString("\n\n✏️ កល្យាណ បង្កើតដោយសិស្ស NGS PREAKLEAP")
	return b.String()
}

// HelpText lists the commands.
func HelpText(onlineEnabled bool) string {
	return "📖 របៀបប្រើ\n\n" +
		"សរសេរសំណួររបស់អ្នកដោយផ្ទាល់ ឧ. «សាលាបើកម៉ោងប៉ុន្មាន?»\n\n" +
		commandList(onlineEnabled) +
		"\n\n👥 ក្នុងក្រុម សូម @mention ខ្ញុំ ឬប្រើពាក្យបញ្ជា /"
}

func commandList(onlineEnabled bool) string {
	lines := []string{
		"🔰 ពាក្យបញ្ជា:",
		"• /schoolinfo – បង្ហាញសំណួរ Offline (ចុចបាន)",
	}
	if onlineEnabled {
		lines = append(lines,
			"• /ask <សំណួរ> – សួរតាម API (Online)",
			"• /ai <សំណួរ> – ដូច /ask",
			"• /quota – មើលចំនួនសំណួរ AI ដែលនៅសល់",
		)
	}
	lines = append(lines, "• /help – ជំនួយ")
	return strings.Join(lines, "\n")
}

// WelcomeMessages builds the greeting reply with navigation quick replies.
func WelcomeMessages(onlineEnabled bool) []messaging_api.MessageInterface {
	sender := lineutil.GetSender(lineutil.SenderAssistant, "")
	return []messaging_api.MessageInterface{
		lineutil.NewTextMessageWithQuickReply(WelcomeText(onlineEnabled), sender,
			lineutil.QuickReplyOutlineAction(),
			lineutil.QuickReplyHelpAction(),
		),
	}
}
