package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/tubewatch/aggregate"
	"github.com/c360/tubewatch/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "counts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	s := openTestStore(t)

	var journalMode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	version, err := userVersion(s.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	var table string
	require.NoError(t, s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='video_counts'").Scan(&table))
	assert.Equal(t, "video_counts", table)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "counts.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceCounts(context.Background(), []aggregate.Entry{{VideoID: "dQw4w9WgXcQ", Count: 2}}, time.Now()))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	entries, err := s.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []aggregate.Entry{{VideoID: "dQw4w9WgXcQ", Count: 2}}, entries)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestReplaceCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Unix(1725911162, 0)

	require.NoError(t, s.ReplaceCounts(ctx, []aggregate.Entry{
		{VideoID: "bbbbbbbbbbb", Count: 1},
		{VideoID: "aaaaaaaaaaa", Count: 4},
	}, now))

	entries, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []aggregate.Entry{
		{VideoID: "aaaaaaaaaaa", Count: 4},
		{VideoID: "bbbbbbbbbbb", Count: 1},
	}, entries)

	updated, ok, err := s.UpdatedAt(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, now.Equal(updated))

	// A new snapshot replaces the previous one
	later := now.Add(time.Hour)
	require.NoError(t, s.ReplaceCounts(ctx, []aggregate.Entry{{VideoID: "ccccccccccc", Count: 7}}, later))

	entries, err = s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []aggregate.Entry{{VideoID: "ccccccccccc", Count: 7}}, entries)

	updated, _, err = s.UpdatedAt(ctx)
	require.NoError(t, err)
	assert.True(t, later.Equal(updated))
}

func TestReplaceCounts_Empty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.ReplaceCounts(ctx, []aggregate.Entry{{VideoID: "aaaaaaaaaaa", Count: 1}}, time.Now()))
	require.NoError(t, s.ReplaceCounts(ctx, nil, time.Now()))

	entries, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, ok, err := s.UpdatedAt(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplaceCounts_CancelledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.ReplaceCounts(ctx, []aggregate.Entry{{VideoID: "aaaaaaaaaaa", Count: 1}}, time.Now())
	require.Error(t, err)

	entries, err := s.Counts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
