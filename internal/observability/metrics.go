// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dlebee/erc20/internal/domain"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger operation metrics
	OperationsTotal  *prometheus.CounterVec // by op, status
	TransferredValue prometheus.Counter
	EventsEmitted    *prometheus.CounterVec // by kind

	// API metrics
	RequestDuration *prometheus.HistogramVec // by route
	StreamClients   prometheus.Gauge

	// Audit metrics
	AuditRunsTotal   *prometheus.CounterVec // by status
	AuditDivergences prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_ledger"
	}

	return &Metrics{
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Total number of ledger operations by op and status",
		}, []string{"op", "status"}),
		TransferredValue: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "transferred_value_total",
			Help:      "Total token value moved by successful transfers",
		}),
		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "events_emitted_total",
			Help:      "Total number of events emitted by kind",
		}, []string{"kind"}),

		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request handling duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		StreamClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "stream_clients",
			Help:      "Current number of connected event-stream clients",
		}),

		AuditRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "runs_total",
			Help:      "Total number of conservation audits by status",
		}, []string{"status"}),
		AuditDivergences: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "divergences",
			Help:      "Account divergences found by the last conservation audit",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}

// EventCounter is an event sink that counts emissions by kind. It is
// meant to sit in the sink fan-out next to the journal.
type EventCounter struct {
	metrics *Metrics
}

// EventCounter returns the counting sink for these metrics.
func (m *Metrics) EventCounter() *EventCounter {
	return &EventCounter{metrics: m}
}

// Append implements the ledger event-sink contract.
func (c *EventCounter) Append(_ context.Context, e *domain.Event) error {
	c.metrics.EventsEmitted.WithLabelValues(string(e.Kind)).Inc()
	return nil
}
