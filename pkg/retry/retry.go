package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	// Thread-safe random source for jitter
	randMu     sync.Mutex
	randSource = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// NonRetryableError wraps errors that should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return fmt.Sprintf("non-retryable: %v", e.Err)
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Config provides retry configuration
type Config struct {
	MaxAttempts  int           // Maximum number of attempts (0 = run once)
	InitialDelay time.Duration // Floor delay, used after the first failure
	MaxDelay     time.Duration // Ceiling delay
	Multiplier   float64       // Backoff multiplier (typically 2.0)
	AddJitter    bool          // Add up to 25% randomness on top of the delay
}

// DefaultConfig returns sensible defaults for short-lived retry operations
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		AddJitter:    true,
	}
}

// Reconnect returns the policy for the feed connection: 1000 attempts,
// 1s floor doubling to a 300s ceiling, no jitter.
func Reconnect() Config {
	return Config{
		MaxAttempts:  1000,
		InitialDelay: time.Second,
		MaxDelay:     300 * time.Second,
		Multiplier:   2.0,
		AddJitter:    false,
	}
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if c.InitialDelay < 0 {
		return errors.New("retry: InitialDelay cannot be negative")
	}
	if c.MaxDelay < 0 {
		return errors.New("retry: MaxDelay cannot be negative")
	}
	if c.Multiplier < 0 {
		return errors.New("retry: Multiplier cannot be negative")
	}
	if c.MaxDelay > 0 && c.InitialDelay > 0 && c.MaxDelay < c.InitialDelay {
		return errors.New("retry: MaxDelay must be >= InitialDelay")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialDelay == 0 {
		c.InitialDelay = 100 * time.Millisecond
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
	// Prevent overflow with extremely large multipliers
	if c.Multiplier > 1000 {
		c.Multiplier = 1000
	}
	return c
}

// Backoff tracks the attempt counter and current delay of a retry loop.
// It is owned by a single goroutine and is not safe for concurrent use.
//
// After N consecutive failures the delay returned by Failure is
// min(InitialDelay * Multiplier^(N-1), MaxDelay).
type Backoff struct {
	cfg      Config
	attempts int
	delay    time.Duration
}

// NewBackoff creates a Backoff at its floor delay
func NewBackoff(cfg Config) (*Backoff, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	return &Backoff{cfg: cfg, delay: cfg.InitialDelay}, nil
}

// Attempts returns the number of failures recorded since the last Reset
func (b *Backoff) Attempts() int {
	return b.attempts
}

// Delay returns the delay the next Failure call will hand out
func (b *Backoff) Delay() time.Duration {
	return b.delay
}

// Exhausted reports whether the attempt budget has been used up
func (b *Backoff) Exhausted() bool {
	return b.attempts >= b.cfg.MaxAttempts
}

// MaxAttempts returns the configured attempt budget
func (b *Backoff) MaxAttempts() int {
	return b.cfg.MaxAttempts
}

// Failure records a failed attempt and returns how long to wait before the
// next one. ok is false once the attempt budget is exhausted, in which case
// no further attempt should be made.
func (b *Backoff) Failure() (wait time.Duration, ok bool) {
	b.attempts++
	if b.Exhausted() {
		return 0, false
	}

	wait = b.delay
	if b.cfg.AddJitter && wait >= 4 {
		randMu.Lock()
		jitter := time.Duration(randSource.Int63n(int64(wait / 4)))
		randMu.Unlock()
		wait += jitter
	}

	// Calculate next delay with overflow protection
	next := float64(b.delay) * b.cfg.Multiplier
	if next > float64(b.cfg.MaxDelay) || next > float64(time.Duration(1<<63-1)) {
		b.delay = b.cfg.MaxDelay
	} else {
		b.delay = time.Duration(next)
	}

	return wait, true
}

// Reset returns the delay to its floor and clears the attempt counter
func (b *Backoff) Reset() {
	b.attempts = 0
	b.delay = b.cfg.InitialDelay
}

// Sleep waits for d or until ctx is done, whichever comes first. It returns
// ctx.Err() when the wait was cut short.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do executes fn with exponential backoff retry
func Do(ctx context.Context, cfg Config, fn func() error) error {
	b, err := NewBackoff(cfg)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) {
			return err
		}

		if ctx.Err() != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt+1, ctx.Err())
		}

		wait, ok := b.Failure()
		if !ok {
			break
		}

		if err := Sleep(ctx, wait); err != nil {
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, err)
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", b.MaxAttempts(), lastErr)
}

// DoWithResult executes fn with retry and returns both result and error
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var innerErr error
		result, innerErr = fn()
		return innerErr
	})
	return result, err
}
