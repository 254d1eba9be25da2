package engine

import (
	"fmt"

	"github.com/danielpatrickdp/session-reasoner/internal/audit"
	"github.com/danielpatrickdp/session-reasoner/internal/evidence"
	"github.com/danielpatrickdp/session-reasoner/internal/explain"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
	"github.com/danielpatrickdp/session-reasoner/internal/ranking"
	"github.com/danielpatrickdp/session-reasoner/internal/rules"
)

// #region rule-source
// RuleSource supplies the active rule table. Both *rules.Table and
// *rules.Watcher satisfy it.
type RuleSource interface {
	Current() *rules.Table
}

// #endregion rule-source

// #region result
// Result is the outcome of one reasoning turn.
type Result struct {
	SessionID string `json:"session_id"`
	SubjectID string `json:"subject_id"`
	Turn      string `json:"turn"`

	DerivedStates         []ontology.Label         `json:"derived_states"`
	RankedStates          []ranking.RankedState    `json:"ranked_states"`
	PrimaryConcern        *ontology.Label          `json:"primary_concern"`
	AggregatedSafety      ontology.SafetyFlag      `json:"aggregated_safety"`
	EscalationLevel       ontology.EscalationLevel `json:"escalation_level"`
	EscalationReasons     []string                 `json:"escalation_reasons"`
	SupportRecommendation string                   `json:"support_recommendation"`
	Disclaimer            string                   `json:"disclaimer"`
	AuditRef              string                   `json:"audit_ref"`

	RejectedSignals []evidence.Rejected   `json:"rejected_signals,omitempty"`
	Explanations    []explain.Explanation `json:"explanations,omitempty"`

	// Record is the full audit record written for the turn.
	Record audit.Record `json:"-"`
}

// #endregion result

// #region batch
// TurnRequest is one turn submitted to ReasonBatch.
type TurnRequest struct {
	SessionID string            `json:"session_id"`
	SubjectID string            `json:"subject_id"`
	Signals   []evidence.Signal `json:"signals"`
}

// BatchResult pairs a request index with its outcome.
type BatchResult struct {
	Index  int
	Result Result
	Err    error
}

// #endregion batch

// #region errors
// InvalidSessionError reports a session or subject id the engine will not
// use as a file name or graph key.
type InvalidSessionError struct {
	Field string
	Value string
}

func (e *InvalidSessionError) Error() string {
	return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
}

// SubjectMismatchError is returned when a stored session belongs to a
// different subject than the caller supplied.
type SubjectMismatchError struct {
	SessionID string
	Stored    string
	Requested string
}

func (e *SubjectMismatchError) Error() string {
	return fmt.Sprintf("session %s belongs to subject %q, not %q", e.SessionID, e.Stored, e.Requested)
}

// #endregion errors
