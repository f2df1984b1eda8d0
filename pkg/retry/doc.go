// Package retry provides exponential backoff for transient failures.
//
// # Overview
//
// Two entry points cover the two shapes of retrying in tubewatch:
//
//   - Backoff: explicit attempt/delay state for a long-lived loop that owns its
//     own control flow (the feed connection supervisor).
//   - Do / DoWithResult: run a function until it succeeds or the budget is
//     spent (connecting the optional NATS sink at startup).
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay, jitter
//   - Reconnect(): 1000 attempts, 1s-300s delay, no jitter
//
// # Backoff
//
// After N consecutive failures the delay is min(floor * 2^(N-1), ceiling):
//
//	b, _ := retry.NewBackoff(retry.Reconnect())
//	for {
//	    if err := connect(); err == nil {
//	        b.Reset()
//	        continue
//	    }
//	    wait, ok := b.Failure()
//	    if !ok {
//	        return errors.ErrMaxRetriesExceeded
//	    }
//	    if err := retry.Sleep(ctx, wait); err != nil {
//	        return nil
//	    }
//	}
//
// # Context Cancellation
//
// Sleep and Do abort a pending delay as soon as the context is done.
package retry
