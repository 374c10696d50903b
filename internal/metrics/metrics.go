// Package metrics exposes Prometheus counters for uploads and store access.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload outcomes.
const (
	OutcomeStored     = "stored"
	OutcomeEmpty      = "empty"
	OutcomeStructural = "structural"
	OutcomeFailed     = "failed"
)

// Metrics groups the collectors recorded by the pipeline.
type Metrics struct {
	registry *prometheus.Registry

	Uploads       *prometheus.CounterVec
	RowsRead      prometheus.Counter
	RowsDropped   prometheus.Counter
	Decodes       *prometheus.CounterVec
	StoreOps      *prometheus.CounterVec
	StoreDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "balance",
			Name:      "uploads_total",
			Help:      "Processed uploads by layout and outcome.",
		}, []string{"layout", "outcome"}),
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "balance",
			Name:      "rows_read_total",
			Help:      "Data rows read from uploads.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "balance",
			Name:      "rows_dropped_total",
			Help:      "Data rows rejected during normalization.",
		}),
		Decodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "balance",
			Name:      "decodes_total",
			Help:      "Uploads decoded, by the encoding that succeeded.",
		}, []string{"encoding"}),
		StoreOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "balance",
			Name:      "store_operations_total",
			Help:      "Record store calls by operation and result.",
		}, []string{"operation", "result"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "balance",
			Name:      "store_operation_seconds",
			Help:      "Record store call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	m.registry.MustRegister(
		m.Uploads,
		m.RowsRead,
		m.RowsDropped,
		m.Decodes,
		m.StoreOps,
		m.StoreDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStore records one store call.
func (m *Metrics) ObserveStore(operation string, seconds float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.StoreOps.WithLabelValues(operation, result).Inc()
	m.StoreDuration.WithLabelValues(operation).Observe(seconds)
}
