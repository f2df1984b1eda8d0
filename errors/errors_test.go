package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The errors below are built the way the listener and the counter raise
// them; each must keep both its class and its sentinel through the chain.
func TestRaisedErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		class    ErrorClass
		message  string
	}{
		{
			name:     "exhausted reconnects",
			err:      WrapFatal(ErrMaxRetriesExceeded, "Supervisor", "Run", "reconnect"),
			sentinel: ErrMaxRetriesExceeded,
			class:    ErrorFatal,
			message:  "Supervisor.Run: reconnect failed: max retries reached",
		},
		{
			name: "feed closed the connection",
			err: WrapTransient(fmt.Errorf("%w: close 1001 going away", ErrConnectionLost),
				"Supervisor", "runConnection", "read"),
			sentinel: ErrConnectionLost,
			class:    ErrorTransient,
			message:  "Supervisor.runConnection: read failed: connection lost: close 1001 going away",
		},
		{
			name: "unanswered ping",
			err: WrapTransient(fmt.Errorf("%w: no pong within 10s", ErrHeartbeatTimeout),
				"Supervisor", "runConnection", "heartbeat"),
			sentinel: ErrHeartbeatTimeout,
			class:    ErrorTransient,
			message:  "Supervisor.runConnection: heartbeat failed: heartbeat timeout: no pong within 10s",
		},
		{
			name: "handshake stalled",
			err: WrapTransient(fmt.Errorf("%w: %v", ErrConnectionTimeout, context.DeadlineExceeded),
				"Supervisor", "runConnection", "dial"),
			sentinel: ErrConnectionTimeout,
			class:    ErrorTransient,
		},
		{
			name: "frame is not an event",
			err: WrapInvalid(fmt.Errorf("%w: unexpected end of JSON input", ErrInvalidData),
				"feed", "Decode", "unmarshal event"),
			sentinel: ErrInvalidData,
			class:    ErrorInvalid,
		},
		{
			name: "output directory read-only",
			err: WrapFatal(fmt.Errorf("%w: %w", ErrStorageUnavailable, fs.ErrPermission),
				"Sink", "Write", "append record"),
			sentinel: ErrStorageUnavailable,
			class:    ErrorFatal,
		},
		{
			name: "counter input missing",
			err: WrapInvalid(fmt.Errorf("%w: youtube_posts.jsonl", ErrFileNotFound),
				"aggregate", "TallyFile", "open"),
			sentinel: ErrFileNotFound,
			class:    ErrorInvalid,
		},
		{
			name: "unparseable config layer",
			err: WrapInvalid(fmt.Errorf("%w: yaml: line 1", ErrParsingFailed),
				"Loader", "Load", "load tubewatch.yaml"),
			sentinel: ErrParsingFailed,
			class:    ErrorInvalid,
		},
		{
			name:     "processor without sink",
			err:      WrapInvalid(ErrMissingConfig, "Processor", "New", "validate dependencies"),
			sentinel: ErrMissingConfig,
			class:    ErrorInvalid,
		},
		{
			name:     "second Run",
			err:      WrapFatal(ErrAlreadyStarted, "Supervisor", "Run", "check running state"),
			sentinel: ErrAlreadyStarted,
			class:    ErrorFatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.class, Classify(tt.err))

			var ce *ClassifiedError
			require.True(t, As(tt.err, &ce))
			assert.Equal(t, tt.class, ce.Class)
			if tt.message != "" {
				assert.Equal(t, tt.message, tt.err.Error())
			}
		})
	}
}

// Bare sentinels and library errors carry no class of their own
func TestClassify_Unwrapped(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		class ErrorClass
	}{
		{"heartbeat timeout", ErrHeartbeatTimeout, ErrorTransient},
		{"storage unavailable", ErrStorageUnavailable, ErrorTransient},
		{"context cancelled", context.Canceled, ErrorTransient},
		{"peer reset", errors.New("read tcp 10.0.0.1:443: connection reset by peer"), ErrorTransient},
		{"bad config", ErrInvalidConfig, ErrorFatal},
		{"exhausted", fmt.Errorf("giving up: %w", ErrMaxRetriesExceeded), ErrorFatal},
		{"read-only volume", errors.New("open out.jsonl: read-only file system"), ErrorFatal},
		{"malformed line", fmt.Errorf("line 3: %w", ErrParsingFailed), ErrorInvalid},
		{"anything else", errors.New("unexpected"), ErrorTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.class, Classify(tt.err))
		})
	}
}

func TestPredicates_Nil(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsFatal(nil))
	assert.False(t, IsInvalid(nil))
	assert.Nil(t, Wrap(nil, "Sink", "Write", "append record"))
	assert.Nil(t, WrapTransient(nil, "Sink", "Write", "append record"))
	assert.Nil(t, WrapInvalid(nil, "Sink", "Write", "append record"))
	assert.Nil(t, WrapFatal(nil, "Sink", "Write", "append record"))
}

// An explicit class wins over whatever the chain would suggest
func TestExplicitClassWins(t *testing.T) {
	err := WrapInvalid(ErrConnectionLost, "feed", "Decode", "read")
	assert.True(t, IsInvalid(err))
	assert.False(t, IsTransient(err))

	err = WrapTransient(ErrInvalidConfig, "Client", "Connect", "establish connection")
	assert.True(t, IsTransient(err))
	assert.False(t, IsFatal(err))
}

func TestClassifiedError_Message(t *testing.T) {
	base := errors.New("dial tcp: i/o timeout")
	ce := newClassified(ErrorTransient, base, "Supervisor", "runConnection", "")
	assert.Equal(t, "dial tcp: i/o timeout", ce.Error())
	assert.Equal(t, "Supervisor", ce.Component)
	assert.Equal(t, "runConnection", ce.Operation)
	assert.Same(t, base, errors.Unwrap(ce))
}

func TestErrorClass_String(t *testing.T) {
	assert.Equal(t, "transient", ErrorTransient.String())
	assert.Equal(t, "invalid", ErrorInvalid.String())
	assert.Equal(t, "fatal", ErrorFatal.String())
	assert.Equal(t, "unknown", ErrorClass(42).String())
}

func TestJoin_KeepsSentinels(t *testing.T) {
	err := Join(nil, fmt.Errorf("TUBEWATCH_METRICS_PORT: %w", ErrInvalidConfig), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Nil(t, Join(nil, nil))
}
