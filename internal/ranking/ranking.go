package ranking

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/danielpatrickdp/session-reasoner/internal/explain"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

// #region state-priority
var statePriority = map[ontology.Label]int{
	ontology.PanicRisk:          5,
	ontology.DepressiveSpectrum: 4,
	ontology.AnxietyRisk:        3,
	ontology.AcademicStress:     2,
	ontology.NeedsMoreContext:   0,
}

// StatePriority returns the fixed clinical ordering of a state; unlisted
// states get 1.
func StatePriority(l ontology.Label) int {
	if p, ok := statePriority[l]; ok {
		return p
	}
	return 1
}

// #endregion state-priority

// #region ranker
// Ranker orders explained candidate states.
type Ranker struct{}

// NewRanker creates a ranker.
func NewRanker() *Ranker {
	return &Ranker{}
}

// Rank orders candidates by safety, state priority, rule support, evidence
// diversity and persistence. The sort is stable, so ties keep input order.
// The placeholder state always ranks after every substantive state and
// only counts toward aggregated safety when it is alone.
func (r *Ranker) Rank(exps []explain.Explanation) Result {
	ranked := make([]RankedState, 0, len(exps))
	for _, e := range exps {
		ranked = append(ranked, newRankedState(e))
	}
	slices.SortStableFunc(ranked, func(a, b RankedState) int {
		return compareKeys(b.Key, a.Key)
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
		ranked[i].Rationale = rationale(ranked[i], len(ranked))
	}

	res := Result{
		Ranked:           ranked,
		AggregatedSafety: aggregate(ranked),
	}
	if len(ranked) > 0 {
		p := ranked[0]
		res.PrimaryConcern = p.State
		res.Summary = fmt.Sprintf("Primary concern: %s (confidence %s, safety %s) among %d candidate state(s)",
			p.Description, p.Confidence, p.SafetyFlag, len(ranked))
	} else {
		res.Summary = "No candidate states were derived for this session"
	}
	return res
}

// #endregion ranker

// #region helpers
func newRankedState(e explain.Explanation) RankedState {
	rs := RankedState{
		State:              e.State,
		Description:        e.Description,
		Confidence:         e.Confidence,
		OriginalConfidence: e.Confidence,
		SafetyFlag:         e.SafetyFlag,
		RuleCount:          e.RuleCount(),
		Persistence:        e.Persistence,
	}
	// HIGH safety backed by a single rule cannot carry HIGH confidence.
	if rs.SafetyFlag == ontology.SafetyHigh && rs.RuleCount == 1 && rs.Confidence == ontology.ConfidenceHigh {
		rs.Confidence = ontology.ConfidenceMedium
		rs.ConfidenceCapped = true
	}
	rs.Key = PriorityKey{
		Substantive: 1,
		Safety:    e.SafetyFlag.Priority(),
		State:     StatePriority(e.State),
		Rules:     explain.RuleScore(rs.RuleCount),
		Diversity: explain.DiversityScore(e.Categories.NonEmpty()),
	}
	if ontology.ClassOf(e.State) == ontology.ClassPlaceholder {
		rs.Key.Substantive = 0
	}
	if e.Persistence {
		rs.Key.Persistence = 1
	}
	return rs
}

func compareKeys(a, b PriorityKey) int {
	if c := cmp.Compare(a.Substantive, b.Substantive); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Safety, b.Safety); c != 0 {
		return c
	}
	if c := cmp.Compare(a.State, b.State); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Rules, b.Rules); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Diversity, b.Diversity); c != 0 {
		return c
	}
	return cmp.Compare(a.Persistence, b.Persistence)
}

func aggregate(ranked []RankedState) ontology.SafetyFlag {
	best := ontology.SafetyNone
	for _, r := range ranked {
		if r.Key.Substantive == 0 && len(ranked) > 1 {
			continue
		}
		if r.SafetyFlag.Priority() > best.Priority() {
			best = r.SafetyFlag
		}
	}
	return best
}

func rationale(r RankedState, total int) []string {
	var out []string
	switch r.SafetyFlag {
	case ontology.SafetyHigh:
		out = append(out, "SAFETY OVERRIDE: HIGH safety flag places this at highest priority")
	case ontology.SafetyModerate:
		out = append(out, "Elevated priority due to MODERATE safety flag")
	}
	switch {
	case r.RuleCount >= 2:
		out = append(out, fmt.Sprintf("Strong rule support: %d independent rules fired", r.RuleCount))
	case r.RuleCount == 1:
		out = append(out, "Limited rule support: single rule fired")
	default:
		out = append(out, "No rule provenance recorded")
	}
	switch r.Key.Diversity {
	case 3:
		out = append(out, "High evidence diversity: all four evidence categories present")
	case 2:
		out = append(out, "Good evidence diversity: three evidence categories present")
	}
	if r.Persistence {
		out = append(out, "Persistence detected: repeated stress exposure present")
	} else {
		out = append(out, "No persistence signal: may be acute/situational")
	}
	if r.Key.Substantive == 0 && total > 1 {
		out = append(out, "Placeholder state: ranked after every substantive state")
	}
	if r.ConfidenceCapped {
		out = append(out, "Confidence capped at MEDIUM: HIGH safety supported by a single rule")
	}
	if r.Rank == 1 && total > 1 {
		out = append(out, fmt.Sprintf("Ranked highest of %d states by safety, state priority and evidence", total))
	}
	return out
}

// #endregion helpers
