// Package storage defines the persistence contract for video ID tallies.
package storage

import (
	"context"
	"time"

	"github.com/c360/tubewatch/aggregate"
)

// CountStore keeps the latest video ID tally produced by the counter.
//
// Implementations must be safe for concurrent use.
type CountStore interface {
	// ReplaceCounts atomically swaps the stored tally for entries.
	// Running the counter twice over the same file leaves the same rows.
	ReplaceCounts(ctx context.Context, entries []aggregate.Entry, now time.Time) error

	// Counts returns the stored tally ordered by video ID.
	Counts(ctx context.Context) ([]aggregate.Entry, error)

	// UpdatedAt reports when the tally was last replaced. ok is false
	// when nothing has been stored yet.
	UpdatedAt(ctx context.Context) (t time.Time, ok bool, err error)

	// Close releases the backend.
	Close() error
}
