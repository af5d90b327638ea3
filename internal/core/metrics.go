package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "tether"

// Metrics holds the Prometheus collectors shared by the server and the client.
type Metrics struct {
	ConnectionsAccepted prometheus.Counter
	ConnectionsRejected *prometheus.CounterVec
	ActiveConnections   prometheus.Gauge
	AuthAttempts        *prometheus.CounterVec
	PacketsReceived     *prometheus.CounterVec
	EventsDispatched    prometheus.Counter
	EventsDropped       prometheus.Counter
	Reconnects          prometheus.Counter
	PingLatency         prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg creates
// collectors that are not registered anywhere, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConnectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted client connections",
		}),
		ConnectionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_rejected_total",
			Help:      "Total number of refused client connections",
		}, []string{"reason"}),
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_connections",
			Help:      "Number of currently open client connections",
		}),
		AuthAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "auth_attempts_total",
			Help:      "Total number of handshakes processed by result",
		}, []string{"result"}),
		PacketsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "packets_received_total",
			Help:      "Total number of packets received by type",
		}, []string{"type"}),
		EventsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_dispatched_total",
			Help:      "Total number of write events written to a client",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_dropped_total",
			Help:      "Total number of write events whose target was gone or failed",
		}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconnects_total",
			Help:      "Total number of successful client reconnections",
		}),
		PingLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "ping_latency_seconds",
			Help:      "Round trip time of heartbeat pings",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}
}
