// Package config loads the tubewatch listener configuration.
//
// # Layers
//
// Configuration is assembled in order, later sources winning:
//
//  1. Default(): the public Jetstream endpoint, youtube_posts.jsonl, no NATS,
//     no metrics server, info/text logging
//  2. file layers added with AddLayer, JSON or YAML by extension
//  3. TUBEWATCH_* environment variables
//
// File layers are deep-merged, so a layer only needs the keys it changes:
//
//	feed:
//	  ping_interval: 20s
//	  retry:
//	    max_attempts: 50
//	nats:
//	  url: nats://localhost:4222
//
// Durations are Go duration strings ("30s", "5m") or integer nanoseconds.
// A "d" suffix is accepted for whole days.
//
// # Environment
//
//	TUBEWATCH_FEED_URL            TUBEWATCH_OUTPUT_PATH
//	TUBEWATCH_FEED_COLLECTIONS    TUBEWATCH_NATS_URL
//	TUBEWATCH_FEED_PING_INTERVAL  TUBEWATCH_NATS_SUBJECT
//	TUBEWATCH_FEED_PING_TIMEOUT   TUBEWATCH_NATS_USERNAME
//	TUBEWATCH_FEED_MAX_RETRIES    TUBEWATCH_NATS_PASSWORD
//	TUBEWATCH_METRICS_PORT        TUBEWATCH_NATS_TOKEN
//	TUBEWATCH_LOG_LEVEL           TUBEWATCH_LOG_FORMAT
//
// # Usage
//
//	loader := config.NewLoader()
//	loader.AddLayer("tubewatch.yaml")
//	cfg, err := loader.Load()
//	if err != nil {
//		return err
//	}
//	sup, err := firehose.New(cfg.Firehose(), proc, console)
//
// Config files are read through a guarded path: at most 10MB, regular files
// only, no traversal outside the working directory for relative paths, and
// JSON nesting capped at 100 levels.
package config
