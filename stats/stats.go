// Package stats holds the per-connection counters of the live listener and
// renders them as the operator status line.
package stats

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Counter names, shared with the Prometheus mirror
const (
	CounterMessages      = "message"
	CounterPosts         = "post"
	CounterMatches       = "match"
	CounterOtherOps      = "other"
	CounterDecodeErrors  = "decode_error"
	CounterPersistErrors = "persist_error"
)

// Recorder receives every counter increment. metric.Metrics implements it.
type Recorder interface {
	RecordStreamEvent(counter string)
}

// RunStats counts what the listener has seen since the last successful
// connection. Counters are atomic so the status line and the metrics
// endpoint can read them while the ingestion loop writes.
type RunStats struct {
	messages      atomic.Uint64
	posts         atomic.Uint64
	matches       atomic.Uint64
	otherOps      atomic.Uint64
	decodeErrors  atomic.Uint64
	persistErrors atomic.Uint64
	start         atomic.Int64 // unix nanoseconds

	recorder Recorder
}

// New returns counters whose epoch starts at now. recorder may be nil.
func New(now time.Time, recorder Recorder) *RunStats {
	s := &RunStats{recorder: recorder}
	s.Reset(now)
	return s
}

// Reset zeroes every counter and starts a new epoch at now
func (s *RunStats) Reset(now time.Time) {
	s.messages.Store(0)
	s.posts.Store(0)
	s.matches.Store(0)
	s.otherOps.Store(0)
	s.decodeErrors.Store(0)
	s.persistErrors.Store(0)
	s.start.Store(now.UnixNano())
}

// AddMessage counts one received frame and returns the new total
func (s *RunStats) AddMessage() uint64 { return s.add(&s.messages, CounterMessages) }

// AddPost counts one post creation
func (s *RunStats) AddPost() uint64 { return s.add(&s.posts, CounterPosts) }

// AddMatch counts one post with YouTube links and returns the new total
func (s *RunStats) AddMatch() uint64 { return s.add(&s.matches, CounterMatches) }

// AddOtherOp counts one event that is not a post creation
func (s *RunStats) AddOtherOp() uint64 { return s.add(&s.otherOps, CounterOtherOps) }

// AddDecodeError counts one frame that could not be decoded
func (s *RunStats) AddDecodeError() uint64 { return s.add(&s.decodeErrors, CounterDecodeErrors) }

// AddPersistError counts one record that could not be written
func (s *RunStats) AddPersistError() uint64 { return s.add(&s.persistErrors, CounterPersistErrors) }

func (s *RunStats) add(c *atomic.Uint64, name string) uint64 {
	n := c.Add(1)
	if s.recorder != nil {
		s.recorder.RecordStreamEvent(name)
	}
	return n
}

// Snapshot is a point-in-time copy of RunStats with the derived rates
type Snapshot struct {
	Messages      uint64
	Posts         uint64
	Matches       uint64
	OtherOps      uint64
	DecodeErrors  uint64
	PersistErrors uint64

	Start   time.Time
	Elapsed time.Duration
	// Rate is messages per second over the epoch, 0 when no time has passed
	Rate float64
	// MatchRate is matches / posts * 100, 0 when no posts were seen
	MatchRate float64
}

// Snapshot reads the counters and derives the rates at now. It does not
// modify anything.
func (s *RunStats) Snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		Messages:      s.messages.Load(),
		Posts:         s.posts.Load(),
		Matches:       s.matches.Load(),
		OtherOps:      s.otherOps.Load(),
		DecodeErrors:  s.decodeErrors.Load(),
		PersistErrors: s.persistErrors.Load(),
		Start:         time.Unix(0, s.start.Load()),
	}

	snap.Elapsed = now.Sub(snap.Start)
	if snap.Elapsed < 0 {
		snap.Elapsed = 0
	}
	if secs := snap.Elapsed.Seconds(); secs > 0 {
		snap.Rate = float64(snap.Messages) / secs
	}
	if snap.Posts > 0 {
		snap.MatchRate = float64(snap.Matches) / float64(snap.Posts) * 100
	}
	return snap
}

// Render formats the status line for now
func (s *RunStats) Render(now time.Time) string {
	return s.Snapshot(now).String()
}

// String formats the snapshot as the status line, e.g.
//
//	Total: 12,345 | Posts: 9,876 | YouTube: 12 (0.12%) | Other ops: 2,469 | Runtime: 0:05:12 | 39.6 msg/s
func (s Snapshot) String() string {
	return fmt.Sprintf("Total: %s | Posts: %s | YouTube: %d (%.2f%%) | Other ops: %s | Runtime: %s | %.1f msg/s",
		humanize.Comma(int64(s.Messages)),
		humanize.Comma(int64(s.Posts)),
		s.Matches,
		s.MatchRate,
		humanize.Comma(int64(s.OtherOps)),
		FormatRuntime(s.Elapsed),
		s.Rate,
	)
}

// FormatRuntime renders d as H:MM:SS, dropping fractions of a second
func FormatRuntime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}
