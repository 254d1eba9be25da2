package ranking

import (
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

// #region priority-key
// PriorityKey is the lexicographic sort key of a candidate, compared
// field by field, highest first. Substantive is 0 only for the placeholder.
type PriorityKey struct {
	Substantive int `json:"substantive"`
	Safety      int `json:"safety"`
	State       int `json:"state"`
	Rules       int `json:"rules"`
	Diversity   int `json:"diversity"`
	Persistence int `json:"persistence"`
}

// #endregion priority-key

// #region ranked-state
// RankedState is one candidate in priority order.
type RankedState struct {
	Rank               int                      `json:"rank"`
	State              ontology.Label           `json:"state"`
	Description        string                   `json:"description"`
	Confidence         ontology.ConfidenceLabel `json:"confidence"`
	OriginalConfidence ontology.ConfidenceLabel `json:"original_confidence"`
	ConfidenceCapped   bool                     `json:"confidence_capped"`
	SafetyFlag         ontology.SafetyFlag      `json:"safety_flag"`
	RuleCount          int                      `json:"rule_count"`
	Persistence        bool                     `json:"persistence"`
	Key                PriorityKey              `json:"-"`
	Rationale          []string                 `json:"rationale"`
}

// #endregion ranked-state

// #region ranking-result
// Result is the ranker's output for one turn.
type Result struct {
	Ranked           []RankedState       `json:"ranked_states"`
	PrimaryConcern   ontology.Label      `json:"primary_concern,omitempty"`
	AggregatedSafety ontology.SafetyFlag `json:"aggregated_safety"`
	Summary          string              `json:"summary"`
}

// #endregion ranking-result
