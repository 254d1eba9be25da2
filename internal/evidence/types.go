package evidence

import "github.com/danielpatrickdp/session-reasoner/internal/ontology"

// #region signal

// Signal is one extracted evidence item, produced outside the core.
type Signal struct {
	Label       string `json:"label"`
	Category    string `json:"category"` // "emotion" | "symptom" | "trigger"
	SurfaceText string `json:"surface_text,omitempty"`
	Confidence  string `json:"confidence,omitempty"` // optional LOW | MEDIUM | HIGH
}

// #endregion signal

// #region intake-result

// Accepted is a signal recorded as an evidence node.
type Accepted struct {
	EvidenceID  string               `json:"evidence_id"`
	Label       ontology.Label       `json:"label"`
	Persistence ontology.Persistence `json:"persistence"`
}

// Rejected is a signal refused by validation. Only the offending signal is
// dropped; the rest of the turn proceeds.
type Rejected struct {
	Signal Signal `json:"signal"`
	Reason string `json:"reason"`
}

// IntakeResult summarizes one turn's intake.
type IntakeResult struct {
	Accepted   []Accepted
	Rejected   []Rejected
	Duplicates int // repeats of a label already taken this turn
}

// #endregion intake-result

// #region categories

// Categories groups session facts for display and scoring. Each list has set
// semantics in first-occurrence order.
type Categories struct {
	Emotions    []ontology.Label `json:"emotions"`
	Symptoms    []ontology.Label `json:"symptoms"`
	Triggers    []ontology.Label `json:"triggers"`
	RiskFactors []ontology.Label `json:"risk_factors"`
}

// Item is one categorized evidence entry.
type Item struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// #endregion categories
