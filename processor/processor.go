// Package processor turns feed frames into matched records.
package processor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/c360/tubewatch/errors"
	"github.com/c360/tubewatch/feed"
	"github.com/c360/tubewatch/health"
	"github.com/c360/tubewatch/matcher"
	"github.com/c360/tubewatch/output"
	"github.com/c360/tubewatch/stats"
)

// StatusEvery is how many messages pass between status line refreshes
const StatusEvery = 100

// Option configures a Processor
type Option func(*Processor)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the capture time source
func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

// Processor handles one frame at a time: classify, match, persist, count.
// It implements firehose.Handler. The counters it updates belong to the
// console printer and are reset by the supervisor on every connection.
type Processor struct {
	console *stats.Printer
	stats   *stats.RunStats
	sink    output.Sink
	logger  *slog.Logger
	now     func() time.Time

	started      time.Time
	lastActivity atomic.Int64 // unix nanoseconds
	failures     atomic.Int64
}

// New creates a Processor writing matches to sink
func New(console *stats.Printer, sink output.Sink, opts ...Option) (*Processor, error) {
	if console == nil || sink == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Processor", "New", "console and sink are required")
	}

	p := &Processor{
		console: console,
		stats:   console.Stats(),
		sink:    sink,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.started = p.now()
	return p, nil
}

// Handle processes a single feed frame. A frame that cannot be decoded or a
// match that cannot be persisted is reported as an error; the caller moves
// on to the next frame either way.
func (p *Processor) Handle(ctx context.Context, frame []byte) error {
	n := p.stats.AddMessage()
	p.lastActivity.Store(p.now().UnixNano())
	if n%StatusEvery == 0 {
		p.console.Status()
	}

	evt, err := feed.Decode(frame)
	if err != nil {
		p.stats.AddDecodeError()
		p.failures.Add(1)
		p.logger.Warn("Skipping undecodable frame", "error", err, "bytes", len(frame))
		return err
	}

	c := feed.Classify(evt)
	if !c.Qualifying {
		p.stats.AddOtherOp()
		return nil
	}
	p.stats.AddPost()

	links := matcher.ExtractLinks(c.Text)
	if len(links) == 0 {
		return nil
	}

	matches := p.stats.AddMatch()
	rec := feed.NewMatchedRecord(evt, links, p.now())
	if err := p.sink.Write(ctx, rec); err != nil {
		p.stats.AddPersistError()
		p.failures.Add(1)
		p.logger.Error("Failed to persist match",
			"sink", p.sink.Name(),
			"did", evt.DID,
			"error", err)
		return errors.Wrap(err, "Processor", "Handle", "persist match")
	}

	p.logger.Debug("Match persisted", "did", evt.DID, "links", len(links))
	p.console.Match(matches, links)
	p.console.Status()
	return nil
}

// Health reports processing activity. A failed persist in the current epoch
// degrades the status; the sink's own state is reported separately.
func (p *Processor) Health() health.Status {
	now := p.now()
	snap := p.stats.Snapshot(now)

	status := health.NewHealthy("processor", "Processing feed frames")
	failures := p.failures.Load()
	if snap.PersistErrors > 0 {
		status = health.NewDegraded("processor", "Persisting matches has failed")
	}

	status.Metrics = &health.Metrics{
		Uptime:     now.Sub(p.started),
		ErrorCount: int(failures),
		Processed:  int64(snap.Messages),
	}
	if last := p.lastActivity.Load(); last > 0 {
		status.Metrics.LastActivity = time.Unix(0, last)
	}
	return status
}
