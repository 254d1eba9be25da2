package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

// Turn outcomes.
const (
	OutcomeOK             = "ok"
	OutcomeInvalidSession = "invalid_session"
	OutcomeCorrupt        = "corrupt_session"
	OutcomeExportFailure  = "export_failure"
	OutcomeError          = "error"
)

// Metrics holds the engine's collectors. A nil *Metrics records nothing.
type Metrics struct {
	Turns           *prometheus.CounterVec
	Escalations     *prometheus.CounterVec
	DerivedStates   *prometheus.CounterVec
	RejectedSignals prometheus.Counter
	AuditLogErrors  prometheus.Counter
	TurnDuration    prometheus.Histogram
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reasoner_turns_total",
			Help: "Reasoning turns by outcome",
		}, []string{"outcome"}),
		Escalations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reasoner_escalations_total",
			Help: "Completed turns by escalation level",
		}, []string{"level"}),
		DerivedStates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "reasoner_derived_states_total",
			Help: "States newly derived by the rule fixpoint",
		}, []string{"state"}),
		RejectedSignals: f.NewCounter(prometheus.CounterOpts{
			Name: "reasoner_rejected_signals_total",
			Help: "Signals rejected by ontology validation",
		}),
		AuditLogErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "reasoner_audit_log_errors_total",
			Help: "Audit records that could not be written to the audit log",
		}),
		TurnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "reasoner_turn_duration_seconds",
			Help:    "End-to-end duration of a reasoning turn",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

// ObserveTurn counts a finished turn and its duration.
func (m *Metrics) ObserveTurn(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(outcome).Inc()
	m.TurnDuration.Observe(d.Seconds())
}

// ObserveDecision counts the escalation level and newly derived states.
func (m *Metrics) ObserveDecision(level ontology.EscalationLevel, added []ontology.Label) {
	if m == nil {
		return
	}
	m.Escalations.WithLabelValues(string(level)).Inc()
	for _, l := range added {
		m.DerivedStates.WithLabelValues(string(l)).Inc()
	}
}

// ObserveRejected counts rejected signals.
func (m *Metrics) ObserveRejected(n int) {
	if m == nil || n == 0 {
		return
	}
	m.RejectedSignals.Add(float64(n))
}

// ObserveAuditLogError counts a failed audit log write.
func (m *Metrics) ObserveAuditLogError() {
	if m == nil {
		return
	}
	m.AuditLogErrors.Inc()
}
