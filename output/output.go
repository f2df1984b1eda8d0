// Package output defines where matched records go.
//
// Every destination implements Sink. The live listener always writes to the
// JSONL file sink (output/file) and optionally fans out to NATS
// (output/nats) through Multi.
package output

import (
	"context"

	"github.com/c360/tubewatch/errors"
	"github.com/c360/tubewatch/feed"
	"github.com/c360/tubewatch/health"
)

// Sink persists matched records
type Sink interface {
	// Name identifies the sink in logs and health reports
	Name() string
	// Write stores one record. Errors are reported to the caller, who
	// decides whether to continue.
	Write(ctx context.Context, rec feed.MatchedRecord) error
	// Health reports the state of the sink
	Health() health.Status
	// Close releases any resources held by the sink
	Close() error
}

// Multi writes every record to all of its sinks, in order. A failing sink
// does not stop the others; the errors are joined.
type Multi []Sink

// Name returns "multi"
func (m Multi) Name() string { return "multi" }

// Write writes rec to every sink
func (m Multi) Write(ctx context.Context, rec feed.MatchedRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, rec); err != nil {
			errs = append(errs, errors.Wrap(err, "Multi", "Write", "write to "+s.Name()))
		}
	}
	return errors.Join(errs...)
}

// Health aggregates the health of every sink
func (m Multi) Health() health.Status {
	subs := make([]health.Status, 0, len(m))
	for _, s := range m {
		st := s.Health()
		st.Component = s.Name()
		subs = append(subs, st)
	}
	return health.Aggregate(m.Name(), subs)
}

// Close closes every sink and joins the errors
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
