package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags_Defaults(t *testing.T) {
	t.Setenv("TUBEWATCH_CONFIG", "")
	t.Setenv("TUBEWATCH_DEBUG", "")
	t.Setenv("TUBEWATCH_SHUTDOWN_TIMEOUT", "")

	cfg, err := parseFlags(nil, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Empty(t, cfg.ConfigPath)
	assert.Empty(t, cfg.LogLevel)
	assert.Equal(t, -1, cfg.MetricsPort)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.ShowVersion)
	assert.NoError(t, validateFlags(cfg))
}

func TestParseFlags_Values(t *testing.T) {
	cfg, err := parseFlags([]string{
		"--output=/tmp/out.jsonl",
		"--feed-url=ws://localhost:6008/subscribe",
		"--nats-url=nats://localhost:4222",
		"--metrics-port=9090",
		"--log-format=json",
		"--debug",
	}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/out.jsonl", cfg.OutputPath)
	assert.Equal(t, "ws://localhost:6008/subscribe", cfg.FeedURL)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseFlags_EnvFallback(t *testing.T) {
	t.Setenv("TUBEWATCH_SHUTDOWN_TIMEOUT", "12s")
	t.Setenv("TUBEWATCH_DEBUG", "true")

	cfg, err := parseFlags(nil, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 12*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseFlags_Help(t *testing.T) {
	var stderr bytes.Buffer
	_, err := parseFlags([]string{"--help"}, &stderr)
	assert.ErrorIs(t, err, flag.ErrHelp)
	assert.Contains(t, stderr.String(), "Examples:")
	assert.Contains(t, stderr.String(), "--validate")
}

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name    string
		cfg     CLIConfig
		wantErr string
	}{
		{"missing config file", CLIConfig{ConfigPath: "/nope/tubewatch.yaml", ShutdownTimeout: time.Second}, "config file not found"},
		{"bad log level", CLIConfig{LogLevel: "loud", ShutdownTimeout: time.Second}, "invalid log level"},
		{"bad log format", CLIConfig{LogFormat: "xml", ShutdownTimeout: time.Second}, "invalid log format"},
		{"bad port", CLIConfig{MetricsPort: 70000, ShutdownTimeout: time.Second}, "invalid metrics port"},
		{"bad timeout", CLIConfig{}, "invalid shutdown timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFlags(&tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	assert.NoError(t, validateFlags(&CLIConfig{ShowVersion: true}))
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tubewatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output:
  path: from-file.jsonl
log:
  level: warn
`), 0o600))

	cfg, err := loadConfig(&CLIConfig{
		ConfigPath:  path,
		OutputPath:  filepath.Join(dir, "from-flag.jsonl"),
		LogFormat:   "json",
		MetricsPort: 9191,
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "from-flag.jsonl"), cfg.Output.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 9191, cfg.Metrics.Port)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := loadConfig(&CLIConfig{FeedURL: "http://not-a-websocket", MetricsPort: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger("warn", "json", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"service":"tubewatch"`)
}
