package processor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/tubewatch/errors"
	"github.com/c360/tubewatch/feed"
	"github.com/c360/tubewatch/health"
	"github.com/c360/tubewatch/output/file"
	"github.com/c360/tubewatch/stats"
)

type memorySink struct {
	mu      sync.Mutex
	records []feed.MatchedRecord
	err     error
}

func (m *memorySink) Name() string { return "memory" }

func (m *memorySink) Write(_ context.Context, rec feed.MatchedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memorySink) Health() health.Status { return health.NewHealthy("memory", "ok") }
func (m *memorySink) Close() error          { return nil }

func postFrame(did, rkey, text string) []byte {
	b, _ := json.Marshal(map[string]any{
		"did":     did,
		"time_us": 1725911162329308,
		"kind":    "commit",
		"commit": map[string]any{
			"rev":        "3l3qo2vutsw2b",
			"operation":  "create",
			"collection": "app.bsky.feed.post",
			"rkey":       rkey,
			"record": map[string]any{
				"$type":     "app.bsky.feed.post",
				"text":      text,
				"createdAt": "2024-09-09T19:46:02.102Z",
				"langs":     []string{"en"},
			},
		},
	})
	return b
}

func newTestProcessor(t *testing.T, sink *memorySink) (*Processor, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	console := stats.NewPrinter(&out, stats.New(time.Now(), nil))
	p, err := New(console, sink)
	require.NoError(t, err)
	return p, &out
}

func TestNew_RequiresDependencies(t *testing.T) {
	console := stats.NewPrinter(&bytes.Buffer{}, stats.New(time.Now(), nil))

	_, err := New(nil, &memorySink{})
	assert.True(t, errors.IsInvalid(err))

	_, err = New(console, nil)
	assert.True(t, errors.IsInvalid(err))
}

func TestHandle_QualifyingPostScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "youtube_posts.jsonl")
	cfg := file.DefaultConfig()
	cfg.Path = path
	sink, err := file.NewSink(cfg, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	console := stats.NewPrinter(&out, stats.New(time.Now(), nil))
	p, err := New(console, sink)
	require.NoError(t, err)

	frame := []byte(`{"kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.post","record":{"text":"check https://youtu.be/dQw4w9WgXcQ now"}},"did":"did:abc"}`)
	require.NoError(t, p.Handle(context.Background(), frame))

	snap := console.Stats().Snapshot(time.Now())
	assert.Equal(t, uint64(1), snap.Messages)
	assert.Equal(t, uint64(1), snap.Posts)
	assert.Equal(t, uint64(1), snap.Matches)
	assert.Zero(t, snap.OtherOps)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 1)
	assert.Equal(t, "did:abc", lines[0]["did"])
	assert.Equal(t, "check https://youtu.be/dQw4w9WgXcQ now", lines[0]["text"])
	assert.Equal(t, []any{"https://youtu.be/dQw4w9WgXcQ"}, lines[0]["youtube_urls"])
	assert.Equal(t, []any{}, lines[0]["langs"])
	assert.Nil(t, lines[0]["created_at"])
	assert.Nil(t, lines[0]["bsky_url"])

	assert.Contains(t, out.String(), "\nFound YouTube post #1: [https://youtu.be/dQw4w9WgXcQ]\n")
	assert.Contains(t, out.String(), "\rTotal: 1 | Posts: 1 | YouTube: 1 (100.00%) | Other ops: 0")
}

func TestHandle_RecordFields(t *testing.T) {
	sink := &memorySink{}
	p, _ := newTestProcessor(t, sink)

	text := "two links https://www.youtube.com/watch?v=AAAAAAAAAAA&t=1 and https://youtu.be/BBBBBBBBBBB"
	require.NoError(t, p.Handle(context.Background(), postFrame("did:plc:xyz", "3l3qo2vuowo2b", text)))

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, "did:plc:xyz", rec.Author())
	assert.Equal(t, text, rec.Text)
	assert.Equal(t, []string{"https://www.youtube.com/watch?v=AAAAAAAAAAA&t=1", "https://youtu.be/BBBBBBBBBBB"}, rec.YouTubeURLs)
	assert.Equal(t, []string{"en"}, rec.Langs)
	require.NotNil(t, rec.CreatedAt)
	assert.Equal(t, "2024-09-09T19:46:02.102Z", *rec.CreatedAt)
	require.NotNil(t, rec.BskyURL)
	assert.Equal(t, "https://bsky.app/profile/did:plc:xyz/post/3l3qo2vuowo2b", *rec.BskyURL)
}

func TestHandle_Classification(t *testing.T) {
	tests := []struct {
		name      string
		frame     string
		posts     uint64
		otherOps  uint64
		matches   uint64
		persisted int
	}{
		{
			name:  "post without links",
			frame: string(postFrame("did:a", "1", "hello world")),
			posts: 1,
		},
		{
			name:     "post deletion",
			frame:    `{"did":"did:a","kind":"commit","commit":{"operation":"delete","collection":"app.bsky.feed.post","rkey":"1"}}`,
			otherOps: 1,
		},
		{
			name:     "like creation",
			frame:    `{"did":"did:a","kind":"commit","commit":{"operation":"create","collection":"app.bsky.feed.like","record":{"text":"https://youtu.be/dQw4w9WgXcQ"}}}`,
			otherOps: 1,
		},
		{
			name:     "identity event",
			frame:    `{"did":"did:a","kind":"identity","identity":{"handle":"a.bsky.social"}}`,
			otherOps: 1,
		},
		{
			name:      "post with link",
			frame:     string(postFrame("did:a", "1", "https://youtube.com/shorts/x")),
			posts:     1,
			matches:   1,
			persisted: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &memorySink{}
			p, _ := newTestProcessor(t, sink)

			require.NoError(t, p.Handle(context.Background(), []byte(tt.frame)))

			snap := p.stats.Snapshot(time.Now())
			assert.Equal(t, uint64(1), snap.Messages)
			assert.Equal(t, tt.posts, snap.Posts)
			assert.Equal(t, tt.otherOps, snap.OtherOps)
			assert.Equal(t, tt.matches, snap.Matches)
			assert.Len(t, sink.records, tt.persisted)
		})
	}
}

func TestHandle_DecodeError(t *testing.T) {
	sink := &memorySink{}
	p, out := newTestProcessor(t, sink)

	err := p.Handle(context.Background(), []byte(`{"kind":`))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.ErrorIs(t, err, errors.ErrInvalidData)

	snap := p.stats.Snapshot(time.Now())
	assert.Equal(t, uint64(1), snap.Messages)
	assert.Equal(t, uint64(1), snap.DecodeErrors)
	assert.Zero(t, snap.Posts)
	assert.Zero(t, snap.OtherOps)
	assert.Empty(t, sink.records)
	assert.Empty(t, out.String())

	// The next frame is processed normally
	require.NoError(t, p.Handle(context.Background(), postFrame("did:a", "1", "https://youtu.be/x")))
	assert.Len(t, sink.records, 1)
}

func TestHandle_PersistError(t *testing.T) {
	sink := &memorySink{err: stderrors.New("disk full")}
	p, out := newTestProcessor(t, sink)

	err := p.Handle(context.Background(), postFrame("did:a", "1", "https://youtu.be/x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Processor.Handle: persist match failed")
	assert.Contains(t, err.Error(), "disk full")

	snap := p.stats.Snapshot(time.Now())
	assert.Equal(t, uint64(1), snap.Matches)
	assert.Equal(t, uint64(1), snap.PersistErrors)
	assert.NotContains(t, out.String(), "Found YouTube post")

	status := p.Health()
	assert.Equal(t, health.StateDegraded, status.Status)
	require.NotNil(t, status.Metrics)
	assert.Equal(t, 1, status.Metrics.ErrorCount)
}

func TestHandle_StatusEveryHundredMessages(t *testing.T) {
	sink := &memorySink{}
	p, out := newTestProcessor(t, sink)

	frame := []byte(`{"did":"did:a","kind":"account","account":{"active":true}}`)
	for i := 0; i < 250; i++ {
		require.NoError(t, p.Handle(context.Background(), frame))
	}

	assert.Equal(t, 2, strings.Count(out.String(), "\rTotal:"))
	assert.Contains(t, out.String(), "\rTotal: 100 |")
	assert.Contains(t, out.String(), "\rTotal: 200 |")
	assert.Empty(t, sink.records)
}

func TestHandle_MatchNumbering(t *testing.T) {
	sink := &memorySink{}
	p, out := newTestProcessor(t, sink)

	for i := 1; i <= 3; i++ {
		frame := postFrame("did:a", fmt.Sprint(i), fmt.Sprintf("video https://youtu.be/%d", i))
		require.NoError(t, p.Handle(context.Background(), frame))
	}

	for i := 1; i <= 3; i++ {
		assert.Contains(t, out.String(), fmt.Sprintf("Found YouTube post #%d: [https://youtu.be/%d]", i, i))
	}

	// A new epoch restarts the numbering
	p.stats.Reset(time.Now())
	require.NoError(t, p.Handle(context.Background(), postFrame("did:a", "4", "https://youtu.be/4")))
	assert.Contains(t, out.String(), "Found YouTube post #1: [https://youtu.be/4]")
}

func TestHealth(t *testing.T) {
	now := time.Date(2024, 9, 9, 12, 0, 0, 0, time.UTC)
	sink := &memorySink{}
	console := stats.NewPrinter(&bytes.Buffer{}, stats.New(now, nil))
	p, err := New(console, sink, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	status := p.Health()
	assert.True(t, status.IsHealthy())
	assert.Equal(t, "processor", status.Component)
	assert.True(t, status.Metrics.LastActivity.IsZero())

	require.NoError(t, p.Handle(context.Background(), postFrame("did:a", "1", "nothing")))
	status = p.Health()
	assert.True(t, status.IsHealthy())
	assert.Equal(t, int64(1), status.Metrics.Processed)
	assert.True(t, status.Metrics.LastActivity.Equal(now))
}

func TestHandle_CapturesClock(t *testing.T) {
	at := time.Date(2024, 9, 9, 12, 30, 15, 123456000, time.Local)
	sink := &memorySink{}
	console := stats.NewPrinter(&bytes.Buffer{}, stats.New(at, nil))
	p, err := New(console, sink, WithClock(func() time.Time { return at }))
	require.NoError(t, err)

	require.NoError(t, p.Handle(context.Background(), postFrame("did:a", "1", "https://youtu.be/x")))
	require.Len(t, sink.records, 1)
	assert.Equal(t, at.Format(feed.TimestampFormat), sink.records[0].Timestamp)
}
