package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/tubewatch/errors"
	"github.com/c360/tubewatch/feed"
	"github.com/c360/tubewatch/health"
)

// DefaultPath is the output file used when none is configured
const DefaultPath = "youtube_posts.jsonl"

// Config holds configuration for the file sink
type Config struct {
	Path     string      `json:"path"      yaml:"path"`
	FileMode os.FileMode `json:"file_mode" yaml:"file_mode"`
	DirMode  os.FileMode `json:"dir_mode"  yaml:"dir_mode"`
}

// DefaultConfig returns default configuration for the file sink
func DefaultConfig() Config {
	return Config{
		Path:     DefaultPath,
		FileMode: 0644,
		DirMode:  0755,
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "path is required")
	}
	return nil
}

// Sink appends records to a JSONL file, one open/write/close per record
type Sink struct {
	path     string
	fileMode os.FileMode
	dirMode  os.FileMode
	logger   *slog.Logger

	// Serialises writers so lines never interleave
	mu sync.Mutex

	startTime       time.Time
	recordsWritten  atomic.Int64
	bytesWritten    atomic.Int64
	failures        atomic.Int64
	lastWriteFailed atomic.Bool
	lastActivity    atomic.Int64
}

// NewSink creates a file sink. logger may be nil.
func NewSink(cfg Config, logger *slog.Logger) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Sink{
		path:      cfg.Path,
		fileMode:  cfg.FileMode,
		dirMode:   cfg.DirMode,
		logger:    logger,
		startTime: time.Now(),
	}, nil
}

// Name returns "file"
func (s *Sink) Name() string { return "file" }

// Path returns the output file path
func (s *Sink) Path() string { return s.path }

// Write appends rec as one JSON line. The append is local and short, so it
// completes even when the caller's context is already cancelled: a match
// that has been counted is never dropped on shutdown.
func (s *Sink) Write(_ context.Context, rec feed.MatchedRecord) error {
	line, err := rec.MarshalLine()
	if err != nil {
		s.fail()
		return errors.WrapInvalid(err, "Sink", "Write", "marshal record")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.appendLine(line)
	if err != nil {
		s.fail()
		s.logger.Debug("Failed to append record",
			"component", s.Name(),
			"path", s.path,
			"error", err)
		fatal := errors.IsFatal(err)
		err = fmt.Errorf("%w: %w", errors.ErrStorageUnavailable, err)
		if fatal {
			return errors.WrapFatal(err, "Sink", "Write", "append record")
		}
		return errors.WrapTransient(err, "Sink", "Write", "append record")
	}

	s.recordsWritten.Add(1)
	s.bytesWritten.Add(int64(n))
	s.lastWriteFailed.Store(false)
	s.lastActivity.Store(time.Now().UnixNano())

	s.logger.Debug("Record written to file",
		"component", s.Name(),
		"did", rec.Author(),
		"bytes_written", n)
	return nil
}

func (s *Sink) appendLine(line []byte) (int, error) {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, s.dirMode); err != nil {
			return 0, err
		}
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, s.fileMode)
	if err != nil {
		return 0, err
	}

	n, werr := f.Write(line)
	cerr := f.Close()
	if werr != nil {
		return n, werr
	}
	return n, cerr
}

func (s *Sink) fail() {
	s.failures.Add(1)
	s.lastWriteFailed.Store(true)
}

// Stats returns the number of records and bytes written and failed writes
func (s *Sink) Stats() (records, bytes, failures int64) {
	return s.recordsWritten.Load(), s.bytesWritten.Load(), s.failures.Load()
}

// Health reports degraded while the most recent write has failed
func (s *Sink) Health() health.Status {
	var st health.Status
	if s.lastWriteFailed.Load() {
		st = health.NewDegraded(s.Name(), "last write failed")
	} else {
		st = health.NewHealthy(s.Name(), "appending to "+filepath.Base(s.path))
	}

	metrics := &health.Metrics{
		Uptime:     time.Since(s.startTime),
		ErrorCount: int(s.failures.Load()),
		Processed:  s.recordsWritten.Load(),
	}
	if ts := s.lastActivity.Load(); ts > 0 {
		metrics.LastActivity = time.Unix(0, ts)
	}
	return st.WithMetrics(metrics)
}

// Close is a no-op; the sink holds no descriptor between writes
func (s *Sink) Close() error { return nil }
