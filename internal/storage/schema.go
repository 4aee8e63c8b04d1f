package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables and indexes.
func InitSchema(ctx context.Context, db *sql.DB) error {
	return createQAEventsTable(ctx, db)
}

func createQAEventsTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS qa_events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		chat_id TEXT NOT NULL DEFAULT '',
		question TEXT NOT NULL DEFAULT '',
		normalized TEXT NOT NULL DEFAULT '',
		matched TEXT NOT NULL DEFAULT '',
		score REAL NOT NULL DEFAULT 0,
		provider TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_qa_events_created_at ON qa_events(created_at);
	CREATE INDEX IF NOT EXISTS idx_qa_events_kind_created ON qa_events(kind, created_at);
	CREATE INDEX IF NOT EXISTS idx_qa_events_normalized ON qa_events(normalized);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create qa_events table: %w", err)
	}
	return nil
}
