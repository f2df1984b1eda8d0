package file

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/tubewatch/errors"
	"github.com/c360/tubewatch/feed"
)

func testRecord(t *testing.T, text string) feed.MatchedRecord {
	t.Helper()
	raw := `{"did":"did:abc","kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.post","rkey":"3k","record":{"text":` +
		mustJSON(t, text) + `,"langs":["en"]}}}`
	evt, err := feed.Decode([]byte(raw))
	require.NoError(t, err)
	return feed.NewMatchedRecord(evt, []string{"https://youtu.be/dQw4w9WgXcQ"}, time.Now())
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultPath, cfg.Path)

	cfg.Path = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = NewSink(Config{}, nil)
	assert.Error(t, err)
}

func TestSink_WriteCreatesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "youtube_posts.jsonl")
	sink, err := NewSink(Config{Path: path}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sink.Write(ctx, testRecord(t, "first https://youtu.be/dQw4w9WgXcQ")))
	require.NoError(t, sink.Write(ctx, testRecord(t, "second\nline https://youtu.be/dQw4w9WgXcQ")))

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "first https://youtu.be/dQw4w9WgXcQ", lines[0]["text"])
	assert.Equal(t, "second\nline https://youtu.be/dQw4w9WgXcQ", lines[1]["text"])
	assert.Equal(t, "did:abc", lines[1]["did"])

	records, bytes, failures := sink.Stats()
	assert.Equal(t, int64(2), records)
	assert.Positive(t, bytes)
	assert.Zero(t, failures)
	assert.True(t, sink.Health().IsHealthy())
}

func TestSink_PreservesExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"existing":true}`+"\n"), 0644))

	sink, err := NewSink(Config{Path: path}, nil)
	require.NoError(t, err)
	require.NoError(t, sink.Write(context.Background(), testRecord(t, "new")))

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, true, lines[0]["existing"])
	assert.Equal(t, "new", lines[1]["text"])
}

func TestSink_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.jsonl")
	sink, err := NewSink(Config{Path: path}, nil)
	require.NoError(t, err)

	require.NoError(t, sink.Write(context.Background(), testRecord(t, "x")))
	assert.FileExists(t, path)
}

func TestSink_UnwritablePath(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}

	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0700) })

	sink, err := NewSink(Config{Path: filepath.Join(dir, "out.jsonl")}, nil)
	require.NoError(t, err)

	err = sink.Write(context.Background(), testRecord(t, "x"))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
	assert.ErrorIs(t, err, errors.ErrStorageUnavailable)
	assert.ErrorIs(t, err, os.ErrPermission)

	_, _, failures := sink.Stats()
	assert.Equal(t, int64(1), failures)
	assert.True(t, sink.Health().IsDegraded())
}

func TestSink_PathIsDirectory(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(Config{Path: dir}, nil)
	require.NoError(t, err)

	err = sink.Write(context.Background(), testRecord(t, "x"))
	assert.ErrorIs(t, err, errors.ErrStorageUnavailable)
	assert.True(t, sink.Health().IsDegraded())

	// Recovers once a write succeeds again
	sink.path = filepath.Join(dir, "ok.jsonl")
	require.NoError(t, sink.Write(context.Background(), testRecord(t, "y")))
	assert.True(t, sink.Health().IsHealthy())
}

func TestSink_CancelledContextStillAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	sink, err := NewSink(Config{Path: path}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, sink.Write(ctx, testRecord(t, "counted before shutdown")))

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.Equal(t, "counted before shutdown", lines[0]["text"])
	records, _, failures := sink.Stats()
	assert.Equal(t, int64(1), records)
	assert.Zero(t, failures)
}

func TestSink_ConcurrentWritesDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	sink, err := NewSink(Config{Path: path}, nil)
	require.NoError(t, err)

	rec := testRecord(t, "concurrent https://youtu.be/dQw4w9WgXcQ")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sink.Write(context.Background(), rec))
		}()
	}
	wg.Wait()

	assert.Len(t, readLines(t, path), 20)
}
