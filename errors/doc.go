// Package errors provides the error classification used across tubewatch.
//
// # Overview
//
// Every fault the listener can hit falls into one of three classes:
//
//   - Transient: dial failures, resets, heartbeat timeouts, close frames. The
//     connection supervisor reconnects with backoff.
//   - Invalid: a frame that is not valid JSON, a line in the output file that
//     does not parse. The offending unit is reported and skipped.
//   - Fatal: bad configuration, an unwritable output directory at startup,
//     exhausted reconnect attempts. Processing stops.
//
// Classification works with errors.Is and errors.As, so a wrapped sentinel
// keeps its class through the chain.
//
// # Error Wrapping Pattern
//
// All wrapping follows one format:
//
//	"component.method: action failed: %w"
//
// Three wrappers attach an explicit class:
//
//	errors.WrapTransient(err, "Supervisor", "dial", "open websocket")
//	errors.WrapInvalid(err, "feed", "Decode", "unmarshal event")
//	errors.WrapFatal(err, "Supervisor", "Run", "connect")
//
// Wrap without a class leaves classification to the sentinel or message
// inside the chain.
//
// # Standard Error Variables
//
//   - Connection: ErrConnectionLost, ErrConnectionTimeout, ErrHeartbeatTimeout
//   - Data: ErrInvalidData, ErrParsingFailed
//   - Storage: ErrStorageUnavailable, ErrFileNotFound
//   - Configuration: ErrInvalidConfig, ErrMissingConfig
//   - Retry: ErrMaxRetriesExceeded
package errors
