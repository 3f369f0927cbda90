package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Decision components reported in metrics
const (
	ComponentGate     = "gate"
	ComponentResolver = "resolver"
	ComponentGuard    = "entitlement"
)

// Metrics holds the Prometheus collectors for access decisions and audit writes.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	DecisionsTotal    *prometheus.CounterVec
	DecisionDuration  *prometheus.HistogramVec
	DecisionErrors    *prometheus.CounterVec
	AuditEntriesTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmguard_decisions_total",
				Help: "Total number of access decisions",
			},
			[]string{"component", "outcome", "reason"},
		),
		DecisionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crmguard_decision_duration_seconds",
				Help:    "Access decision latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"component"},
		),
		DecisionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmguard_decision_errors_total",
				Help: "Total number of access decisions that failed with an error",
			},
			[]string{"component"},
		),
		AuditEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crmguard_audit_entries_total",
				Help: "Total number of audit entries recorded",
			},
			[]string{"entity_type", "action"},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.DecisionsTotal,
			m.DecisionDuration,
			m.DecisionErrors,
			m.AuditEntriesTotal,
		)
	}

	return m
}

// RecordDecision counts a decision and observes its latency
func (m *Metrics) RecordDecision(component string, granted bool, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "denied"
	if granted {
		outcome = "granted"
	}
	m.DecisionsTotal.WithLabelValues(component, outcome, reason).Inc()
	m.DecisionDuration.WithLabelValues(component).Observe(duration.Seconds())
}

// RecordDecisionError counts a decision that could not be evaluated
func (m *Metrics) RecordDecisionError(component string) {
	if m == nil {
		return
	}
	m.DecisionErrors.WithLabelValues(component).Inc()
}

// RecordAuditEntry counts a recorded audit entry
func (m *Metrics) RecordAuditEntry(entityType, action string) {
	if m == nil {
		return
	}
	m.AuditEntriesTotal.WithLabelValues(entityType, action).Inc()
}
