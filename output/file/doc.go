// Package file appends matched records to a JSON Lines file.
//
// # Durability
//
// Each Write opens the file with O_CREATE|O_WRONLY|O_APPEND, writes exactly
// one line and closes it again. No descriptor is held between writes, so an
// interrupted process can lose at most the line being written and never
// damages lines already on disk. The parent directory is created on demand.
//
// # Usage
//
//	sink, err := file.NewSink(file.Config{Path: "youtube_posts.jsonl"}, logger)
//	if err != nil {
//	    return err
//	}
//	if err := sink.Write(ctx, rec); err != nil {
//	    logger.Error("persist failed", "error", err)
//	}
//
// # Errors
//
// Write failures are returned, never swallowed. Permission and read-only
// filesystem errors are classified Fatal, everything else Transient; in both
// cases the caller is expected to log and continue with the next record.
//
// # Health
//
// The sink counts written lines, bytes and errors. Health reports degraded
// after a failed write and recovers on the next successful one.
package file
