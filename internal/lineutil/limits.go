package lineutil

// LINE API Character Limits (Rune count)
// References: https://developers.line.biz/en/reference/messaging-api/
const (
	MaxTextMessageLength = 5000 // Text message max content length
	MaxAltTextLength     = 400  // Template message alt text length
	MaxPostbackData      = 300  // Postback action data length

	// Template Message Limits
	MaxTemplateTitleLength = 40  // Buttons template title
	MaxTemplateTextNoImage = 160 // Buttons template text without image
	MaxTemplateActionCount = 4   // Max actions per template

	// Quick Reply Limits
	MaxQuickReplyItemCount = 13 // Max items in a quick reply
	MaxQuickReplyLabel     = 20 // Max label length for quick reply item
	MaxActionLabel         = 20 // Max label length for template buttons
)

// TextListSafeBuffer leaves room for headers when splitting long text
// (outline, online answers) into several messages.
const TextListSafeBuffer = 4900
