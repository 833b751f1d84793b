package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveTurn()
	m.ObserveTurn()
	m.ObserveToolCall("ado_getBuildTimeline", false)
	m.ObserveToolCall("local_grep", true)
	m.ObserveToolCall("mystery", true)
	m.ObserveCompaction()
	m.ObserveBudgetDrops(3)
	m.ObserveBudgetDrops(0)
	m.SessionStarted()
	m.SessionStarted()
	m.SessionFinished("completed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TurnsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("ado", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("local", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("unknown", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CompactionsTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BudgetDropsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsTotal.WithLabelValues("completed")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTurn()
		m.ObserveToolCall("ado_x", false)
		m.ObserveCompaction()
		m.ObserveBudgetDrops(1)
		m.SessionStarted()
		m.SessionFinished("failed")
	})
}
