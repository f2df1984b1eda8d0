// Package tubewatch watches the Bluesky firehose for posts that link to
// YouTube and keeps a durable record of them.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│   input/firehose.Supervisor         │  Jetstream WebSocket, heartbeat,
//	│   (connect, read, reconnect)        │  exponential backoff
//	└─────────────────────────────────────┘
//	           ↓ raw frames
//	┌─────────────────────────────────────┐
//	│   processor.Processor               │  decode, classify, match links,
//	│   (feed + matcher + stats)          │  count, announce
//	└─────────────────────────────────────┘
//	           ↓ feed.MatchedRecord
//	┌─────────────────────────────────────┐
//	│   output.Sink                       │  JSONL file (always),
//	│   (output/file, output/nats)        │  NATS subject (optional)
//	└─────────────────────────────────────┘
//
// The offline side reads the JSONL file back:
//
//	youtube_posts.jsonl → aggregate.Tally → report on stdout
//	                                      → storage/sqlite (optional)
//
// # Commands
//
//   - cmd/tubewatch: the long-running listener. Configured by flags, a
//     JSON or YAML file and TUBEWATCH_* environment variables. Serves
//     Prometheus metrics and /health when a metrics port is set.
//   - cmd/tubecount: counts video IDs across the output file.
//
// # Packages
//
//   - errors: classified errors (transient, invalid, fatal)
//   - pkg/retry: backoff state and retry helpers
//   - matcher: link and video ID extraction
//   - feed: Jetstream event decoding and the persisted record shape
//   - stats: run counters and the console status line
//   - health, metric: health reporting and Prometheus instrumentation
//   - config: layered configuration loading
//   - natsclient: NATS connection management for the NATS sink
package tubewatch
