package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/ngspreakleap/kalyan-linebot-go/internal/errors"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewFileDatabase(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "qa_events.db")

	db, err := New(ctx, dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, db.RecordEvent(ctx, &QAEvent{Kind: KindMiss, Question: "x", Normalized: "x"}))
	require.NoError(t, db.Ping(ctx))

	_, err = os.Stat(dbPath)
	require.NoError(t, err)
	assert.Equal(t, dbPath, db.Path())

	// Reads go through a separate pool and must see the committed write.
	counts, err := db.CountByKind(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[KindMiss])
}

func TestRecordEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := setupTestDB(t)

	ev := &QAEvent{Kind: KindOfflineHit, Question: "Hi", Normalized: "hi", Matched: "hi", Score: 3.6}
	require.NoError(t, db.RecordEvent(ctx, ev))
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.CreatedAt.IsZero())

	err := db.RecordEvent(ctx, &QAEvent{})
	require.ErrorIs(t, err, domerrors.ErrInvalidInput)

	err = db.RecordEvent(ctx, nil)
	require.ErrorIs(t, err, domerrors.ErrInvalidInput)
}

func TestCountByKind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := setupTestDB(t)

	now := time.Now()
	old := now.Add(-48 * time.Hour)
	for _, ev := range []QAEvent{
		{Kind: KindOfflineHit, CreatedAt: now},
		{Kind: KindOfflineHit, CreatedAt: now},
		{Kind: KindMiss, CreatedAt: now},
		{Kind: KindOnline, CreatedAt: old},
	} {
		require.NoError(t, db.RecordEvent(ctx, &ev))
	}

	counts, err := db.CountByKind(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{KindOfflineHit: 2, KindMiss: 1}, counts)
}

func TestTopMisses(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := setupTestDB(t)

	base := time.Now().Add(-time.Hour)
	events := []QAEvent{
		{Kind: KindMiss, Question: "Bus?", Normalized: "bus", CreatedAt: base},
		{Kind: KindSuggest, Question: "bus", Normalized: "bus", CreatedAt: base.Add(time.Minute)},
		{Kind: KindMiss, Question: "BUS", Normalized: "bus", CreatedAt: base.Add(2 * time.Minute)},
		{Kind: KindMiss, Question: "wifi_pass", Normalized: "wifi_pass", CreatedAt: base},
		{Kind: KindMiss, Question: "wifi", Normalized: "wifi", CreatedAt: base.Add(3 * time.Minute)},
		{Kind: KindOfflineHit, Question: "fees", Normalized: "fees", CreatedAt: base},
		{Kind: KindMiss, Question: "ancient", Normalized: "ancient", CreatedAt: base.Add(-72 * time.Hour)},
	}
	for _, ev := range events {
		require.NoError(t, db.RecordEvent(ctx, &ev))
	}

	misses, err := db.TopMisses(ctx, base.Add(-time.Minute), 10, "")
	require.NoError(t, err)
	require.Len(t, misses, 3)
	assert.Equal(t, "bus", misses[0].Normalized)
	assert.Equal(t, 3, misses[0].Count)
	assert.Equal(t, "BUS", misses[0].Example)
	// Equal counts: most recently seen first.
	assert.Equal(t, "wifi", misses[1].Normalized)
	assert.Equal(t, "wifi_pass", misses[2].Normalized)

	t.Run("limit", func(t *testing.T) {
		got, err := db.TopMisses(ctx, base.Add(-time.Minute), 1, "")
		require.NoError(t, err)
		assert.Len(t, got, 1)

		got, err = db.TopMisses(ctx, base, 0, "")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("contains escapes like wildcards", func(t *testing.T) {
		got, err := db.TopMisses(ctx, base.Add(-time.Minute), 10, "_")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "wifi_pass", got[0].Normalized)
	})
}

func TestDeleteBefore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := setupTestDB(t)

	now := time.Now()
	require.NoError(t, db.RecordEvent(ctx, &QAEvent{Kind: KindMiss, CreatedAt: now.Add(-31 * 24 * time.Hour)}))
	require.NoError(t, db.RecordEvent(ctx, &QAEvent{Kind: KindMiss, CreatedAt: now}))

	n, err := db.DeleteBefore(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	counts, err := db.CountByKind(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[KindMiss])
}

func TestContainsPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"plain", "%plain%"},
		{"100%", `%100\%%`},
		{"a_b", `%a\_b%`},
		{`back\slash`, `%back\\slash%`},
		{"ម៉ោង", "%ម៉ោង%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, containsPattern(tt.in), tt.in)
	}
}
