// Package metrics exposes Prometheus metrics for investigations.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "buildscout"

// Tool call outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds Prometheus metrics for the investigation loop and sessions.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	TurnsTotal       prometheus.Counter     // Total number of agent turns started
	ToolCallsTotal   *prometheus.CounterVec // Tool calls by family and outcome
	CompactionsTotal prometheus.Counter     // Emergency compactions after context-length failures
	BudgetDropsTotal prometheus.Counter     // Transcript entries dropped by budgeting
	SessionsTotal    *prometheus.CounterVec // Finished sessions by final status
	ActiveSessions   prometheus.Gauge       // Sessions currently running
}

// NewMetrics creates the metrics and registers them with reg.
// The registerer parameter allows flexible registration (e.g., global registry, test registry).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TurnsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_turns_total",
			Help:      "Total number of agent turns started",
		}),
		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool calls by family and outcome",
		}, []string{"family", "outcome"}),
		CompactionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_compactions_total",
			Help:      "Total number of emergency transcript compactions",
		}),
		BudgetDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_dropped_entries_total",
			Help:      "Total number of transcript entries dropped to stay within budget",
		}),
		SessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of finished sessions by status",
		}, []string{"status"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of sessions currently running",
		}),
	}

	reg.MustRegister(
		m.TurnsTotal,
		m.ToolCallsTotal,
		m.CompactionsTotal,
		m.BudgetDropsTotal,
		m.SessionsTotal,
		m.ActiveSessions,
	)
	return m
}

// ObserveTurn counts one started turn.
func (m *Metrics) ObserveTurn() {
	if m == nil {
		return
	}
	m.TurnsTotal.Inc()
}

// ObserveToolCall counts a tool call. The family is the name's prefix before
// the first underscore.
func (m *Metrics) ObserveToolCall(toolName string, isError bool) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if isError {
		outcome = OutcomeError
	}
	m.ToolCallsTotal.WithLabelValues(ToolFamily(toolName), outcome).Inc()
}

// ObserveCompaction counts one emergency compaction.
func (m *Metrics) ObserveCompaction() {
	if m == nil {
		return
	}
	m.CompactionsTotal.Inc()
}

// ObserveBudgetDrops counts entries dropped by budgeting.
func (m *Metrics) ObserveBudgetDrops(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BudgetDropsTotal.Add(float64(n))
}

// SessionStarted increments the active sessions gauge.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

// SessionFinished decrements the active sessions gauge and counts the status.
func (m *Metrics) SessionFinished(status string) {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	m.SessionsTotal.WithLabelValues(status).Inc()
}

// ToolFamily returns the family prefix of a namespaced tool name, or
// "unknown" when the name carries no prefix.
func ToolFamily(toolName string) string {
	prefix, _, ok := strings.Cut(toolName, "_")
	if !ok || prefix == "" {
		return "unknown"
	}
	return prefix
}
