package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerCountsOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("gl_integrity").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("gl_integrity").End(boom), boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("gl_integrity", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("gl_integrity", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("gl_integrity")))
}

func TestSetLedgerDriftOverwrites(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SetLedgerDrift(3, 1)
	m.SetLedgerDrift(0, 2)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.drift.WithLabelValues("account_balance")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.drift.WithLabelValues("unbalanced_entry")))
}

func TestNilMetricsTrackerPassesErrorThrough(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("x").End(boom), boom)
	m.SetLedgerDrift(1, 1)
}
