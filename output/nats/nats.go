// Package nats publishes matched records to a NATS subject.
//
// Each record is sent as the same JSON line the file sink writes (without
// the trailing newline), so downstream consumers see exactly what lands in
// youtube_posts.jsonl.
package nats

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/c360/tubewatch/errors"
	"github.com/c360/tubewatch/feed"
	"github.com/c360/tubewatch/health"
	"github.com/c360/tubewatch/natsclient"
)

// DefaultSubject is used when none is configured
const DefaultSubject = "tubewatch.posts"

// DefaultCloseTimeout bounds draining the connection on Close
const DefaultCloseTimeout = 5 * time.Second

// Publisher is the part of natsclient.Client the sink needs
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Status() natsclient.ConnectionStatus
	Close(ctx context.Context) error
}

// Config holds configuration for the NATS sink
type Config struct {
	URL     string `json:"url"     yaml:"url"`
	Subject string `json:"subject" yaml:"subject"`
}

// Enabled reports whether a server URL was configured
func (c Config) Enabled() bool {
	return c.URL != ""
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Subject == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "subject is required")
	}
	if strings.ContainsAny(c.Subject, "*> \t") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"subject must not contain wildcards or whitespace")
	}
	return nil
}

// Option configures a Sink
type Option func(*Sink)

// WithCloseTimeout bounds how long Close waits for the client to drain
func WithCloseTimeout(d time.Duration) Option {
	return func(s *Sink) {
		if d > 0 {
			s.closeTimeout = d
		}
	}
}

// Sink publishes records through a Publisher. It owns the client: Close
// closes it.
type Sink struct {
	client       Publisher
	subject      string
	logger       *slog.Logger
	closeTimeout time.Duration

	published atomic.Int64
	failures  atomic.Int64
}

// NewSink creates a sink publishing on subject. logger may be nil.
func NewSink(client Publisher, subject string, logger *slog.Logger, opts ...Option) (*Sink, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Sink", "NewSink", "client is required")
	}
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{client: client, subject: subject, logger: logger, closeTimeout: DefaultCloseTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name returns "nats"
func (s *Sink) Name() string { return "nats" }

// Subject returns the subject records are published on
func (s *Sink) Subject() string { return s.subject }

// Write publishes rec
func (s *Sink) Write(ctx context.Context, rec feed.MatchedRecord) error {
	line, err := rec.MarshalLine()
	if err != nil {
		s.failures.Add(1)
		return errors.WrapInvalid(err, "Sink", "Write", "marshal record")
	}

	if err := s.client.Publish(ctx, s.subject, line[:len(line)-1]); err != nil {
		s.failures.Add(1)
		return errors.WrapTransient(err, "Sink", "Write", "publish record")
	}

	s.published.Add(1)
	s.logger.Debug("Record published", "component", s.Name(), "subject", s.subject, "did", rec.Author())
	return nil
}

// Health maps the connection status onto a health status
func (s *Sink) Health() health.Status {
	var st health.Status
	switch status := s.client.Status(); status {
	case natsclient.StatusConnected:
		st = health.NewHealthy(s.Name(), "publishing to "+s.subject)
	case natsclient.StatusConnecting, natsclient.StatusReconnecting:
		st = health.NewDegraded(s.Name(), status.String())
	default:
		st = health.NewUnhealthy(s.Name(), status.String())
	}
	return st.WithMetrics(&health.Metrics{
		ErrorCount: int(s.failures.Load()),
		Processed:  s.published.Load(),
	})
}

// Close drains and closes the underlying client within the close timeout
func (s *Sink) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.closeTimeout)
	defer cancel()
	return s.client.Close(ctx)
}
