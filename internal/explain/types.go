package explain

import (
	"github.com/danielpatrickdp/session-reasoner/internal/evidence"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

// UnknownRuleSource stands in for rule provenance that was never recorded.
// It is never counted as a fired rule.
const UnknownRuleSource = "UNKNOWN_RULE_SOURCE"

// #region safety-findings

// SafetyFindings are the escalation booleans relevant to one candidate
// state. Only these feed the safety flag; confidence never does.
type SafetyFindings struct {
	HighRisk           bool
	PanicRisk          bool
	ModerateRisk       bool
	DepressiveSpectrum bool
	MultipleStates     bool
}

// #endregion safety-findings

// #region input

// Input is everything the explainer needs for one candidate state.
type Input struct {
	State      ontology.Label
	Categories evidence.Categories
	// Rules lists the rule ids recorded for State. Nil or empty means the
	// provenance is unknown.
	Rules []string
	// Persistence comes from the RepeatedStressExposure risk factor fact.
	Persistence bool
	Findings    SafetyFindings
}

// #endregion input

// #region explanation

// Explanation is the structured, safety-aware account of one state.
type Explanation struct {
	State              ontology.Label           `json:"state"`
	Description        string                   `json:"description"`
	Reasoning          string                   `json:"reasoning"`
	CausalChain        []string                 `json:"causal_chain"`
	Evidence           []evidence.Item          `json:"evidence"`
	Categories         evidence.Categories      `json:"categories"`
	RulesFired         []string                 `json:"rules_fired"`
	RuleSource         string                   `json:"rule_source"` // "graph" or UnknownRuleSource
	Persistence        bool                     `json:"persistence"`
	Confidence         ontology.ConfidenceLabel `json:"confidence"`
	SafetyFlag         ontology.SafetyFlag      `json:"safety_flag"`
	UncertaintyDrivers []string                 `json:"uncertainty_drivers"`
	EvidenceGaps       []string                 `json:"evidence_gaps"`
	SupportNote        string                   `json:"support_note,omitempty"`
	Notes              string                   `json:"notes"`
}

// RuleCount is the number of recorded supporting rules.
func (e Explanation) RuleCount() int {
	return len(e.RulesFired)
}

// #endregion explanation
