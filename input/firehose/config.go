package firehose

import (
	"fmt"
	"net/url"
	"time"

	"github.com/c360/tubewatch/errors"
	"github.com/c360/tubewatch/feed"
	"github.com/c360/tubewatch/pkg/retry"
)

// DefaultURL is the public Jetstream endpoint the listener subscribes to
const DefaultURL = "wss://jetstream2.us-east.bsky.network/subscribe"

// Config holds configuration for the feed supervisor
type Config struct {
	// URL of the Jetstream subscribe endpoint
	URL string
	// Collections are sent as wantedCollections query parameters
	Collections []string
	// PingInterval is how often a keep-alive ping is sent
	PingInterval time.Duration
	// PingTimeout is how long to wait for a pong beyond PingInterval
	PingTimeout time.Duration
	// HandshakeTimeout bounds a single dial
	HandshakeTimeout time.Duration
	// MaxMessageSize caps a single frame; 0 means no limit
	MaxMessageSize int64
	// UserAgent is sent with the handshake when set
	UserAgent string
	// Retry is the reconnect policy
	Retry retry.Config
}

// DefaultConfig returns the configuration used by the live listener
func DefaultConfig() Config {
	return Config{
		URL:              DefaultURL,
		Collections:      []string{feed.PostCollection},
		PingInterval:     30 * time.Second,
		PingTimeout:      10 * time.Second,
		HandshakeTimeout: 45 * time.Second,
		MaxMessageSize:   1 << 20,
		Retry:            retry.Reconnect(),
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "parse url")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: scheme %q", errors.ErrInvalidConfig, u.Scheme),
			"Config", "Validate", "url scheme must be ws or wss")
	}
	if c.PingInterval <= 0 || c.PingTimeout <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"ping interval and timeout must be positive")
	}
	if c.PingTimeout >= c.PingInterval {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"ping timeout must be shorter than ping interval")
	}
	if c.HandshakeTimeout < 0 || c.MaxMessageSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"handshake timeout and max message size cannot be negative")
	}
	if err := c.Retry.Validate(); err != nil {
		return errors.WrapInvalid(err, "Config", "Validate", "retry policy")
	}
	return nil
}

// Endpoint returns URL with one wantedCollections parameter per collection.
// Collections already present in the URL are not repeated.
func (c *Config) Endpoint() (string, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", errors.WrapInvalid(err, "Config", "Endpoint", "parse url")
	}

	q := u.Query()
	have := make(map[string]bool)
	for _, v := range q["wantedCollections"] {
		have[v] = true
	}
	for _, col := range c.Collections {
		if !have[col] {
			q.Add("wantedCollections", col)
			have[col] = true
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// readWindow is how long the connection may stay silent before it is
// considered dead
func (c *Config) readWindow() time.Duration {
	return c.PingInterval + c.PingTimeout
}
