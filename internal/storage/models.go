package storage

import "time"

// Event kinds.
const (
	KindOfflineHit   = "offline_hit"
	KindSuggest      = "suggest"
	KindMiss         = "miss"
	KindDeepLink     = "deeplink"
	KindDeepLinkMiss = "deeplink_miss"
	KindOnline       = "online"
	KindOnlineError  = "online_error"
)

// QAEvent is one answered (or unanswered) question.
type QAEvent struct {
	ID         string
	Kind       string
	UserID     string
	ChatID     string
	Question   string // raw user text or deep-link id
	Normalized string
	Matched    string // matched knowledge-base question, if any
	Score      float64
	Provider   string // LLM provider for online answers
	CreatedAt  time.Time
}

// MissSummary groups unanswered questions that normalize to the same text.
type MissSummary struct {
	Normalized string
	Example    string // most recent raw form
	Count      int
	LastSeen   time.Time
}
