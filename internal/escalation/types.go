package escalation

import "github.com/danielpatrickdp/session-reasoner/internal/ontology"

// #region trigger-type
// Trigger enumerates escalation findings, in precedence order.
type Trigger string

const (
	TriggerHighRisk             Trigger = "high_risk"
	TriggerPanicWithPersistence Trigger = "panic_with_persistence"
	TriggerDepressiveSpectrum   Trigger = "depressive_spectrum"
	TriggerMultipleStates       Trigger = "multiple_states"
	TriggerModerateRisk         Trigger = "moderate_risk"
)

// #endregion trigger-type

// #region findings
// Findings are the boolean escalation inputs read from the session graph.
type Findings struct {
	HighRisk             bool `json:"high_risk"`
	PanicWithPersistence bool `json:"panic_with_persistence"`
	DepressiveSpectrum   bool `json:"depressive_spectrum"`
	MultipleStates       bool `json:"multiple_states"`
	ModerateRisk         bool `json:"moderate_risk"`

	// ConditionStates is the number of distinct mental-state conditions.
	ConditionStates int `json:"condition_states"`
}

// #endregion findings

// #region triggered
// Triggered is one matched finding.
type Triggered struct {
	Trigger Trigger                  `json:"trigger"`
	Level   ontology.EscalationLevel `json:"level"`
	Reason  string                   `json:"reason"`
}

// #endregion triggered

// #region decision
// Decision is the advisory escalation outcome for one turn.
type Decision struct {
	Level          ontology.EscalationLevel `json:"level"`
	Reasons        []string                 `json:"reasons"`
	Triggered      []Triggered              `json:"triggered"`
	Recommendation string                   `json:"recommendation"`
	Disclaimer     string                   `json:"disclaimer"`
	SafetyOverride bool                     `json:"safety_override"`
	Findings       Findings                 `json:"findings"`
}

// #endregion decision
