package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	domerrors "github.com/ngspreakleap/kalyan-linebot-go/internal/errors"
)

const slowQuery = 100 * time.Millisecond

// RecordEvent inserts an event, assigning an ID and timestamp when unset.
func (db *DB) RecordEvent(ctx context.Context, event *QAEvent) error {
	if event == nil || event.Kind == "" {
		return fmt.Errorf("record event: %w", domerrors.ErrInvalidInput)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO qa_events (id, kind, user_id, chat_id, question, normalized, matched, score, provider, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	start := time.Now()
	_, err := db.writer.ExecContext(ctx, query,
		event.ID, event.Kind, event.UserID, event.ChatID,
		event.Question, event.Normalized, event.Matched, event.Score, event.Provider,
		event.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	if duration := time.Since(start); duration > slowQuery {
		slog.WarnContext(ctx, "slow database operation",
			"operation", "RecordEvent",
			"duration_ms", duration.Milliseconds(),
			"kind", event.Kind)
	}
	return nil
}

// CountByKind counts events per kind since the given time.
func (db *DB) CountByKind(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM qa_events WHERE created_at >= ? GROUP BY kind`,
		since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan event count: %w", err)
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// TopMisses lists the most frequent unanswered questions (misses and
// suggestion-only replies) since the given time. A non-empty contains
// filters on the normalized text.
func (db *DB) TopMisses(ctx context.Context, since time.Time, limit int, contains string) ([]MissSummary, error) {
	if limit <= 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString(`
		SELECT normalized, question, COUNT(*) AS n, MAX(created_at) AS last_seen
		FROM qa_events
		WHERE kind IN (?, ?) AND created_at >= ? AND normalized != ''`)
	args := []any{KindMiss, KindSuggest, since.Unix()}
	if contains != "" {
		b.WriteString(` AND normalized LIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(contains))
	}
	b.WriteString(`
		GROUP BY normalized
		ORDER BY n DESC, last_seen DESC
		LIMIT ?`)
	args = append(args, limit)

	rows, err := db.reader.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query misses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []MissSummary
	for rows.Next() {
		var s MissSummary
		var lastSeen int64
		if err := rows.Scan(&s.Normalized, &s.Example, &s.Count, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan miss: %w", err)
		}
		s.LastSeen = time.Unix(lastSeen, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteBefore removes events older than cutoff and returns how many were deleted.
func (db *DB) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.writer.ExecContext(ctx, `DELETE FROM qa_events WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted events: %w", err)
	}
	return n, nil
}
