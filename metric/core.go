package metric

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tubewatch"

// Connection states exported through the connection_state gauge
var connectionStates = []string{"disconnected", "connecting", "connected", "exhausted", "stopped"}

// Metrics contains the listener metrics
type Metrics struct {
	// Feed metrics
	StreamEvents    *prometheus.CounterVec
	ConnectionState *prometheus.GaugeVec
	ConnectAttempts *prometheus.CounterVec
	BackoffSeconds  prometheus.Histogram

	// Component health
	HealthCheckStatus *prometheus.GaugeVec

	// NATS metrics
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter

	natsEverConnected atomic.Bool
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StreamEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "events_total",
				Help:      "Feed events by outcome (message, post, match, other, decode_error, persist_error)",
			},
			[]string{"counter"},
		),

		ConnectionState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "connection_state",
				Help:      "Feed connection state (1 for the current state, 0 otherwise)",
			},
			[]string{"state"},
		),

		ConnectAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "connect_attempts_total",
				Help:      "Feed connection attempts by result (success, failure)",
			},
			[]string{"result"},
		),

		BackoffSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "backoff_seconds",
				Help:      "Delay before each reconnect attempt",
				Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 300},
			},
		),

		HealthCheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "health",
				Name:      "status",
				Help:      "Health check status (0=unhealthy, 1=degraded, 2=healthy)",
			},
			[]string{"component"},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

// collectors returns every metric for registration
func (c *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.StreamEvents,
		c.ConnectionState,
		c.ConnectAttempts,
		c.BackoffSeconds,
		c.HealthCheckStatus,
		c.NATSConnected,
		c.NATSReconnects,
	}
}

// RecordStreamEvent increments the counter for one stats event
func (c *Metrics) RecordStreamEvent(counter string) {
	c.StreamEvents.WithLabelValues(counter).Inc()
}

// RecordConnectionState marks state as the current connection state
func (c *Metrics) RecordConnectionState(state string) {
	for _, s := range connectionStates {
		if s != state {
			c.ConnectionState.WithLabelValues(s).Set(0)
		}
	}
	c.ConnectionState.WithLabelValues(state).Set(1)
}

// RecordConnectAttempt counts a connection attempt
func (c *Metrics) RecordConnectAttempt(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.ConnectAttempts.WithLabelValues(result).Inc()
}

// RecordBackoff observes a reconnect delay
func (c *Metrics) RecordBackoff(wait time.Duration) {
	c.BackoffSeconds.Observe(wait.Seconds())
}

// RecordHealthStatus updates the health gauge of a component
func (c *Metrics) RecordHealthStatus(component, status string) {
	value := 0.0
	switch status {
	case "healthy":
		value = 2
	case "degraded":
		value = 1
	}
	c.HealthCheckStatus.WithLabelValues(component).Set(value)
}

// RecordNATSStatus updates NATS connection status. A transition back to
// connected counts as a reconnect.
func (c *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	c.NATSConnected.Set(value)
	if connected && c.natsEverConnected.Swap(true) {
		c.NATSReconnects.Inc()
	}
}
