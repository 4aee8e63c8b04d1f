package bot

import "github.com/line/line-bot-sdk-go/v8/linebot/webhook"

// Chat types reported in logs and metrics.
const (
	ChatTypeUser    = "user"
	ChatTypeGroup   = "group"
	ChatTypeRoom    = "room"
	ChatTypeUnknown = "unknown"
)

// GetChatID returns the reply target of a source: the user, group or room ID.
func GetChatID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.GroupId
	case webhook.RoomSource:
		return s.RoomId
	}
	return ""
}

// GetUserID returns the sending user, which may be empty in groups when the
// user has not consented to profile access.
func GetUserID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	}
	return ""
}

// ChatType names the kind of conversation a source belongs to.
func ChatType(source webhook.SourceInterface) string {
	switch source.(type) {
	case webhook.UserSource:
		return ChatTypeUser
	case webhook.GroupSource:
		return ChatTypeGroup
	case webhook.RoomSource:
		return ChatTypeRoom
	}
	return ChatTypeUnknown
}

// IsPersonalChat checks if the source is a 1-on-1 chat.
func IsPersonalChat(source webhook.SourceInterface) bool {
	_, ok := source.(webhook.UserSource)
	return ok
}

// RateKey is the rate-limit key of a source: the user when known, else the chat.
func RateKey(source webhook.SourceInterface) string {
	if id := GetUserID(source); id != "" {
		return id
	}
	return GetChatID(source)
}
