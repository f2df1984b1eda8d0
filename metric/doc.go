// Package metric exposes tubewatch's Prometheus metrics and the /health
// endpoint.
//
// # Core metrics
//
// Registered on every MetricsRegistry under the tubewatch namespace:
//
//	tubewatch_stream_events_total{counter}      stats counter increments
//	tubewatch_stream_connection_state{state}    1 for the current feed state
//	tubewatch_stream_connect_attempts_total{result}
//	tubewatch_stream_backoff_seconds            reconnect delays
//	tubewatch_health_status{component}          0 unhealthy, 1 degraded, 2 healthy
//	tubewatch_nats_connected
//	tubewatch_nats_reconnects_total
//
// Metrics implements stats.Recorder and firehose.Metrics, so the stats
// counters and the supervisor feed it directly. The Go runtime and process
// collectors are registered as well.
//
// Components can add their own collectors through Register:
//
//	registry := metric.NewMetricsRegistry()
//	_ = registry.Register("file", "records_written", prometheus.NewCounterFunc(
//	    prometheus.CounterOpts{Name: "tubewatch_file_records_written_total", Help: "..."},
//	    func() float64 { n, _, _ := sink.Stats(); return float64(n) },
//	))
//
// # Server
//
// Server serves the registry on the configured path and the aggregated
// health.Monitor status as JSON on /health (503 when unhealthy). Start
// blocks until Stop is called.
package metric
