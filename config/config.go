package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/tubewatch/errors"
	"github.com/c360/tubewatch/input/firehose"
	"github.com/c360/tubewatch/output/file"
	natsout "github.com/c360/tubewatch/output/nats"
	"github.com/c360/tubewatch/pkg/retry"
)

// Config represents the complete application configuration
type Config struct {
	Feed    FeedConfig    `json:"feed" yaml:"feed"`
	Output  OutputConfig  `json:"output" yaml:"output"`
	NATS    NATSConfig    `json:"nats" yaml:"nats"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

// FeedConfig defines the Jetstream subscription
type FeedConfig struct {
	URL              string      `json:"url" yaml:"url"`
	Collections      []string    `json:"collections,omitempty" yaml:"collections,omitempty"`
	PingInterval     Duration    `json:"ping_interval" yaml:"ping_interval"`
	PingTimeout      Duration    `json:"ping_timeout" yaml:"ping_timeout"`
	HandshakeTimeout Duration    `json:"handshake_timeout" yaml:"handshake_timeout"`
	MaxMessageSize   int64       `json:"max_message_size" yaml:"max_message_size"`
	UserAgent        string      `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	Retry            RetryConfig `json:"retry" yaml:"retry"`
}

// RetryConfig defines the reconnect backoff
type RetryConfig struct {
	MaxAttempts  int      `json:"max_attempts" yaml:"max_attempts"`
	InitialDelay Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay     Duration `json:"max_delay" yaml:"max_delay"`
	Multiplier   float64  `json:"multiplier" yaml:"multiplier"`
}

// OutputConfig defines the JSONL output file
type OutputConfig struct {
	Path string `json:"path" yaml:"path"`
}

// NATSConfig defines the optional NATS fan-out. An empty URL disables it.
type NATSConfig struct {
	URL           string   `json:"url,omitempty" yaml:"url,omitempty"`
	Subject       string   `json:"subject" yaml:"subject"`
	Name          string   `json:"name,omitempty" yaml:"name,omitempty"`
	MaxReconnects int      `json:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait Duration `json:"reconnect_wait" yaml:"reconnect_wait"`
	Username      string   `json:"username,omitempty" yaml:"username,omitempty"`
	Password      string   `json:"password,omitempty" yaml:"password,omitempty"`
	Token         string   `json:"token,omitempty" yaml:"token,omitempty"`
}

// MetricsConfig defines the metrics and health HTTP server. Port 0 disables it.
type MetricsConfig struct {
	Port int    `json:"port" yaml:"port"`
	Path string `json:"path" yaml:"path"`
}

// LogConfig defines structured logging
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns the configuration used when nothing else is given
func Default() *Config {
	fc := firehose.DefaultConfig()
	return &Config{
		Feed: FeedConfig{
			URL:              fc.URL,
			Collections:      fc.Collections,
			PingInterval:     Duration(fc.PingInterval),
			PingTimeout:      Duration(fc.PingTimeout),
			HandshakeTimeout: Duration(fc.HandshakeTimeout),
			MaxMessageSize:   fc.MaxMessageSize,
			Retry: RetryConfig{
				MaxAttempts:  fc.Retry.MaxAttempts,
				InitialDelay: Duration(fc.Retry.InitialDelay),
				MaxDelay:     Duration(fc.Retry.MaxDelay),
				Multiplier:   fc.Retry.Multiplier,
			},
		},
		Output: OutputConfig{
			Path: file.DefaultPath,
		},
		NATS: NATSConfig{
			Subject:       natsout.DefaultSubject,
			Name:          "tubewatch",
			MaxReconnects: -1,
			ReconnectWait: Duration(2 * time.Second),
		},
		Metrics: MetricsConfig{
			Port: 0,
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	fc := c.Firehose()
	if err := fc.Validate(); err != nil {
		return fmt.Errorf("feed: %w", err)
	}

	out := c.FileSink()
	if err := out.Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	nc := c.NATSSink()
	if err := nc.Validate(); err != nil {
		return fmt.Errorf("nats: %w", err)
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return errors.WrapInvalid(fmt.Errorf("%w: metrics.port %d out of range", errors.ErrInvalidConfig, c.Metrics.Port),
			"Config", "Validate", "check metrics port")
	}
	if c.Metrics.Port > 0 && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.WrapInvalid(fmt.Errorf("%w: metrics.path must start with /", errors.ErrInvalidConfig),
			"Config", "Validate", "check metrics path")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(fmt.Errorf("%w: log.level %q", errors.ErrInvalidConfig, c.Log.Level),
			"Config", "Validate", "check log level")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return errors.WrapInvalid(fmt.Errorf("%w: log.format %q", errors.ErrInvalidConfig, c.Log.Format),
			"Config", "Validate", "check log format")
	}

	return nil
}

// Firehose returns the supervisor configuration
func (c *Config) Firehose() firehose.Config {
	collections := append([]string(nil), c.Feed.Collections...)
	return firehose.Config{
		URL:              c.Feed.URL,
		Collections:      collections,
		PingInterval:     c.Feed.PingInterval.Duration(),
		PingTimeout:      c.Feed.PingTimeout.Duration(),
		HandshakeTimeout: c.Feed.HandshakeTimeout.Duration(),
		MaxMessageSize:   c.Feed.MaxMessageSize,
		UserAgent:        c.Feed.UserAgent,
		Retry: retry.Config{
			MaxAttempts:  c.Feed.Retry.MaxAttempts,
			InitialDelay: c.Feed.Retry.InitialDelay.Duration(),
			MaxDelay:     c.Feed.Retry.MaxDelay.Duration(),
			Multiplier:   c.Feed.Retry.Multiplier,
		},
	}
}

// FileSink returns the JSONL sink configuration
func (c *Config) FileSink() file.Config {
	fc := file.DefaultConfig()
	fc.Path = c.Output.Path
	return fc
}

// NATSSink returns the NATS sink configuration
func (c *Config) NATSSink() natsout.Config {
	return natsout.Config{URL: c.NATS.URL, Subject: c.NATS.Subject}
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}

	// Use JSON marshaling/unmarshaling for deep copy
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := c.Clone()
	if masked.NATS.Password != "" {
		masked.NATS.Password = "***"
	}
	if masked.NATS.Token != "" {
		masked.NATS.Token = "***"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically replaces the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "SafeConfig", "Update", "check config")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Duration is a time.Duration that reads Go duration strings ("30s") or
// integer nanoseconds from JSON and YAML, and writes strings.
type Duration time.Duration

// Duration returns d as a time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON writes d as a duration string
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a number of nanoseconds
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return d.set(v)
}

// MarshalYAML writes d as a duration string
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts a duration string or a number of nanoseconds
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch val := v.(type) {
	case string:
		parsed, err := parseDurationWithDays(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(val))
	case int:
		*d = Duration(time.Duration(val))
	case nil:
	default:
		return fmt.Errorf("invalid duration type %T", v)
	}
	return nil
}

// parseDurationWithDays parses durations that may include days (e.g., "14d")
func parseDurationWithDays(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days := strings.TrimSuffix(s, "d")
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
