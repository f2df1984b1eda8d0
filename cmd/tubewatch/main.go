// Package main implements tubewatch, a Bluesky Jetstream listener that
// appends posts linking to YouTube to a JSONL file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/tubewatch/config"
	"github.com/c360/tubewatch/health"
	"github.com/c360/tubewatch/input/firehose"
	"github.com/c360/tubewatch/metric"
	"github.com/c360/tubewatch/natsclient"
	"github.com/c360/tubewatch/output"
	"github.com/c360/tubewatch/output/file"
	natsout "github.com/c360/tubewatch/output/nats"
	"github.com/c360/tubewatch/processor"
	"github.com/c360/tubewatch/stats"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "tubewatch"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(os.Args[1:]); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run(args []string) error {
	cliCfg, err := parseFlags(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("invalid flags: %w", err)
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)

	if cliCfg.Validate {
		logger.Info("Configuration is valid", "config", cfg.String())
		return nil
	}

	logger.Info("Starting tubewatch",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runListener(ctx, cfg, cliCfg.ShutdownTimeout, logger, os.Stdout)
}

// loadConfig layers the config file, environment and explicit flags
func loadConfig(cliCfg *CLIConfig) (*config.Config, error) {
	loader := config.NewLoader()
	loader.EnableValidation(false)
	if cliCfg.ConfigPath != "" {
		loader.AddLayer(cliCfg.ConfigPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyFlagOverrides(cfg, cliCfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyFlagOverrides(cfg *config.Config, cliCfg *CLIConfig) {
	if cliCfg.LogLevel != "" {
		cfg.Log.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Log.Format = cliCfg.LogFormat
	}
	if cliCfg.OutputPath != "" {
		cfg.Output.Path = cliCfg.OutputPath
	}
	if cliCfg.FeedURL != "" {
		cfg.Feed.URL = cliCfg.FeedURL
	}
	if cliCfg.NATSURL != "" {
		cfg.NATS.URL = cliCfg.NATSURL
	}
	if cliCfg.MetricsPort >= 0 {
		cfg.Metrics.Port = cliCfg.MetricsPort
	}
}

// runListener wires the pipeline and blocks until ctx is cancelled or the
// reconnect budget is spent
func runListener(
	ctx context.Context,
	cfg *config.Config,
	shutdownTimeout time.Duration,
	logger *slog.Logger,
	console io.Writer,
) error {
	registry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()

	printer := stats.NewPrinter(console, stats.New(time.Now(), registry.CoreMetrics()))

	sinks, err := buildSinks(ctx, cfg, shutdownTimeout, logger, registry, monitor)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Warn("Closing sinks failed", "error", err)
		}
	}()

	proc, err := processor.New(printer, sinks, processor.WithLogger(logger))
	if err != nil {
		return err
	}
	monitor.Register("processor", proc)

	sup, err := firehose.New(cfg.Firehose(), proc, printer,
		firehose.WithLogger(logger),
		firehose.WithMetrics(registry.CoreMetrics()))
	if err != nil {
		return err
	}
	monitor.Register("supervisor", sup)

	if cfg.Metrics.Port > 0 {
		server := metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry, monitor)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
		logger.Info("Metrics server listening", "address", server.Address())
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Stop(stopCtx); err != nil {
				logger.Warn("Metrics server shutdown failed", "error", err)
			}
		}()
	}

	if err := sup.Run(ctx); err != nil {
		return err
	}
	logger.Info("tubewatch shutdown complete")
	return nil
}

// buildSinks creates the file sink and, when configured, the NATS sink.
// Closing the returned sink releases the NATS connection within
// closeTimeout.
func buildSinks(
	ctx context.Context,
	cfg *config.Config,
	closeTimeout time.Duration,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
	monitor *health.Monitor,
) (output.Multi, error) {
	fileSink, err := file.NewSink(cfg.FileSink(), logger)
	if err != nil {
		return nil, err
	}
	monitor.Register("file", fileSink)
	registerFileMetrics(registry, fileSink, logger)

	sinks := output.Multi{fileSink}

	nc := cfg.NATSSink()
	if !nc.Enabled() {
		return sinks, nil
	}

	opts := []natsclient.ClientOption{
		natsclient.WithLogger(logger),
		natsclient.WithName(cfg.NATS.Name),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait.Duration()),
		natsclient.WithStatusCallback(registry.CoreMetrics().RecordNATSStatus),
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}

	client, err := natsclient.NewClient(nc.URL, opts...)
	if err != nil {
		return nil, err
	}

	logger.Info("Connecting to NATS", "url", nc.URL)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	natsSink, err := natsout.NewSink(client, nc.Subject, logger, natsout.WithCloseTimeout(closeTimeout))
	if err != nil {
		_ = client.Close(context.Background())
		return nil, err
	}
	monitor.Register("nats", natsSink)
	return append(sinks, natsSink), nil
}

// registerFileMetrics exposes the file sink counters
func registerFileMetrics(registry *metric.MetricsRegistry, sink *file.Sink, logger *slog.Logger) {
	collectors := map[string]prometheus.Collector{
		"records_written": prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "tubewatch",
			Subsystem: "file",
			Name:      "records_written_total",
			Help:      "Records appended to the output file",
		}, func() float64 {
			n, _, _ := sink.Stats()
			return float64(n)
		}),
		"bytes_written": prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "tubewatch",
			Subsystem: "file",
			Name:      "bytes_written_total",
			Help:      "Bytes appended to the output file",
		}, func() float64 {
			_, n, _ := sink.Stats()
			return float64(n)
		}),
		"write_failures": prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "tubewatch",
			Subsystem: "file",
			Name:      "write_failures_total",
			Help:      "Failed appends to the output file",
		}, func() float64 {
			_, _, n := sink.Stats()
			return float64(n)
		}),
	}

	for name, c := range collectors {
		if err := registry.Register("file", name, c); err != nil {
			logger.Warn("Failed to register file sink metric", "metric", name, "error", err)
		}
	}
}
