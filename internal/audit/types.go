package audit

import (
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/session-reasoner/internal/escalation"
	"github.com/danielpatrickdp/session-reasoner/internal/evidence"
	"github.com/danielpatrickdp/session-reasoner/internal/explain"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
	"github.com/danielpatrickdp/session-reasoner/internal/ranking"
)

// PipelineVersion identifies the record layout and stage semantics.
const PipelineVersion = "v1.0"

// Disclaimer is carried by every record.
const Disclaimer = "This system does not provide medical diagnosis or treatment. All outputs are advisory and symbolic in nature. No medical decision was made by this system."

// ErrHashMismatch is returned by Verify when the stored hash does not match
// the record content.
var ErrHashMismatch = errors.New("audit record hash mismatch")

// #region record
// Record is the immutable snapshot of one reasoning turn. It is created once
// and appended to the audit log; it is never edited.
type Record struct {
	SessionID       string `json:"session_id"`
	SubjectID       string `json:"subject_id"`
	Timestamp       string `json:"timestamp"`
	Turn            string `json:"turn"`
	PipelineVersion string `json:"pipeline_version"`

	Signals []evidence.Signal `json:"signals"`
	Intake  IntakeSummary     `json:"intake"`

	Inference    InferenceSummary      `json:"inference_summary"`
	Explanations []explain.Explanation `json:"explanations"`
	Ranking      ranking.Result        `json:"ranking"`
	Escalation   escalation.Decision   `json:"escalation"`

	Provenance Provenance `json:"provenance"`
	Guarantees Guarantees `json:"audit_guarantees"`
	Disclaimer string     `json:"disclaimer"`

	PrevHash   string `json:"prev_hash"`
	RecordHash string `json:"record_hash"`
}

// IntakeSummary records what happened to the turn's signals.
type IntakeSummary struct {
	Accepted   []evidence.Accepted `json:"accepted"`
	Rejected   []evidence.Rejected `json:"rejected"`
	Duplicates int                 `json:"duplicates"`
}

// InferenceSummary lists the session's derived states and supporting rules.
type InferenceSummary struct {
	DerivedStates []ontology.Label `json:"derived_states"`
	RiskFactors   []ontology.Label `json:"risk_factors"`
	RulesFired    []string         `json:"rules_fired"`
	Passes        int              `json:"passes"`
	Converged     bool             `json:"converged"`
}

// Provenance identifies the rule table and the stage that produced each layer.
type Provenance struct {
	RuleIDs         []string          `json:"rule_ids"`
	RuleTableDigest string            `json:"rule_table_digest"`
	RuleSource      string            `json:"rule_source"`
	Layers          map[string]string `json:"layers"`
}

// Guarantees is the fixed set of properties every record asserts.
type Guarantees struct {
	Deterministic bool `json:"deterministic"`
	SymbolicOnly  bool `json:"symbolic_only"`
	NoML          bool `json:"no_ml"`
	NoDiagnosis   bool `json:"no_diagnosis"`
	Reproducible  bool `json:"reproducible"`
	AppendOnly    bool `json:"append_only"`
}

// DefaultGuarantees returns the guarantees asserted by this pipeline.
func DefaultGuarantees() Guarantees {
	return Guarantees{
		Deterministic: true,
		SymbolicOnly:  true,
		NoML:          true,
		NoDiagnosis:   true,
		Reproducible:  true,
		AppendOnly:    true,
	}
}

// #endregion record

// #region log-entry
// Entry is a single row in the audit_log table.
type Entry struct {
	RecordHash string
	PrevHash   string
	SessionID  string
	SubjectID  string
	Turn       string
	Escalation ontology.EscalationLevel
	RecordJSON string
	CreatedAt  time.Time
}

// ChainError reports a broken link or tampered record in a session's chain.
type ChainError struct {
	SessionID string
	Turn      string
	Reason    string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("audit chain %s at %s: %s", e.SessionID, e.Turn, e.Reason)
}

// #endregion log-entry
