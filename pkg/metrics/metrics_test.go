package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.AddRows(OutcomeImported, 2)
	m.AddRows(OutcomeImported, 3)
	m.AddRows(OutcomeDuplicate, 1)
	m.AddRows(OutcomeErrored, 0)
	m.AddReclassified("tiers", 4)

	assert.Equal(t, float64(5), testutil.ToFloat64(m.importRows.WithLabelValues(OutcomeImported)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.importRows.WithLabelValues(OutcomeDuplicate)))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.reclassified.WithLabelValues("tiers")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AddRows(OutcomeImported, 1)
		m.ObserveImport("tabular_a", 0.2)
		m.AddReclassified("game_types", 1)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.AddRows(OutcomeImported, 1)
	m.ObserveImport("tabular_a", 0.1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ledger_import_rows_total{outcome="imported"} 1`)
	assert.Contains(t, string(body), "ledger_import_duration_seconds_bucket")
}
