// Package metrics holds the Prometheus collectors of the import pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Row outcomes recorded by the importer.
const (
	OutcomeImported  = "imported"
	OutcomeDuplicate = "duplicate"
	OutcomeErrored   = "errored"
	OutcomeNoDate    = "dropped_no_date"
	OutcomeLost      = "lost"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	importRows     *prometheus.CounterVec
	importDuration *prometheus.HistogramVec
	reclassified   *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_import_rows_total",
			Help: "Rows seen by the importer, by outcome.",
		}, []string{"outcome"}),
		importDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_import_duration_seconds",
			Help:    "Wall time of one file import.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"format"}),
		reclassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_reclassified_total",
			Help: "Records updated by the reclassification passes.",
		}, []string{"pass"}),
	}
	m.registry.MustRegister(
		m.importRows,
		m.importDuration,
		m.reclassified,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) AddRows(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.importRows.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) ObserveImport(format string, seconds float64) {
	if m == nil {
		return
	}
	m.importDuration.WithLabelValues(format).Observe(seconds)
}

func (m *Metrics) AddReclassified(pass string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reclassified.WithLabelValues(pass).Add(float64(n))
}

// Registry exposes the registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
