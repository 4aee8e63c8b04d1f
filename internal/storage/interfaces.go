package storage

import (
	"context"
	"time"
)

// EventRecorder is the write side of the QA event log used by the bot.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event *QAEvent) error
}

// EventRepository is the full QA event log.
type EventRepository interface {
	EventRecorder
	CountByKind(ctx context.Context, since time.Time) (map[string]int, error)
	TopMisses(ctx context.Context, since time.Time, limit int, contains string) ([]MissSummary, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

var _ EventRepository = (*DB)(nil)
