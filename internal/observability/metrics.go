// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the relay.
type Metrics struct {
	// Upstream metrics
	TransactionsReceived prometheus.Counter
	CreatesExtracted     *prometheus.CounterVec
	Reconnects           prometheus.Counter

	// Fan-out metrics
	RecordsPublished prometheus.Counter
	IdlePublishes    prometheus.Counter

	// Client metrics
	ConnectedClients  prometheus.Gauge
	ClientWriteErrors prometheus.Counter
	LaggedRecords     prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pumpfun_relay"
	}

	return &Metrics{
		TransactionsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "transactions_received_total",
			Help:      "Total number of transaction updates received from the geyser stream",
		}),
		CreatesExtracted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "creates_extracted_total",
			Help:      "Total number of create records extracted, by instruction variant",
		}, []string{"variant"}),
		Reconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "reconnects_total",
			Help:      "Total number of geyser reconnect attempts after a failure",
		}),
		RecordsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "records_published_total",
			Help:      "Total number of create records published to at least one subscriber",
		}),
		IdlePublishes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fanout",
			Name:      "idle_publishes_total",
			Help:      "Total number of create records dropped because no subscriber was attached",
		}),
		ConnectedClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "connected_clients",
			Help:      "Number of currently connected TCP subscribers",
		}),
		ClientWriteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "client_write_errors_total",
			Help:      "Total number of sessions dropped on a socket write or flush error",
		}),
		LaggedRecords: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tcp",
			Name:      "lagged_records_total",
			Help:      "Total number of records skipped by subscribers overtaken by the ring buffer",
		}),
	}
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics("pumpfun_relay")

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordTransactionReceived increments the received transactions counter.
func RecordTransactionReceived() {
	DefaultMetrics.TransactionsReceived.Inc()
}

// RecordCreateExtracted increments the extracted creates counter.
func RecordCreateExtracted(isCreateV2 bool) {
	variant := "create"
	if isCreateV2 {
		variant = "create_v2"
	}
	DefaultMetrics.CreatesExtracted.WithLabelValues(variant).Inc()
}

// RecordReconnect increments the reconnect attempts counter.
func RecordReconnect() {
	DefaultMetrics.Reconnects.Inc()
}

// RecordPublished increments the published records counter.
func RecordPublished() {
	DefaultMetrics.RecordsPublished.Inc()
}

// RecordIdlePublish increments the dropped-without-subscribers counter.
func RecordIdlePublish() {
	DefaultMetrics.IdlePublishes.Inc()
}

// ClientConnected increments the connected clients gauge.
func ClientConnected() {
	DefaultMetrics.ConnectedClients.Inc()
}

// ClientDisconnected decrements the connected clients gauge.
func ClientDisconnected() {
	DefaultMetrics.ConnectedClients.Dec()
}

// RecordClientWriteError increments the write errors counter.
func RecordClientWriteError() {
	DefaultMetrics.ClientWriteErrors.Inc()
}

// RecordLaggedRecords adds the size of a missed span to the lag counter.
func RecordLaggedRecords(missed uint64) {
	DefaultMetrics.LaggedRecords.Add(float64(missed))
}
