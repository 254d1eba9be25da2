package rules

import (
	"fmt"

	"github.com/danielpatrickdp/session-reasoner/internal/graph"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

// #region result

// Firing records one rule whose antecedent matched during a pass.
type Firing struct {
	Pass       int
	RuleID     string
	Consequent ontology.Label
	Added      bool // false when the consequent was already present
}

// Result summarizes one fixpoint run.
type Result struct {
	Passes    int
	Converged bool // last pass added no consequent
	Firings   []Firing
	Added     []ontology.Label
}

// FiredRuleIDs returns distinct matched rule ids in first-match order.
func (r Result) FiredRuleIDs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range r.Firings {
		if !seen[f.RuleID] {
			seen[f.RuleID] = true
			out = append(out, f.RuleID)
		}
	}
	return out
}

// #endregion result

// #region apply

// Apply runs the ordered rule list against the session until a pass adds no
// consequent, or MaxPasses is reached. Facts are only ever added. Each
// matching rule also records a derivedBy fact for its consequent.
func (t *Table) Apply(s *graph.Session) (Result, error) {
	var res Result
	evidence := s.EvidenceTypes()

	for pass := 1; pass <= t.MaxPasses; pass++ {
		changed := false
		for _, r := range t.Rules {
			if !r.matches(s, evidence) {
				continue
			}
			added, err := r.assert(s)
			if err != nil {
				return res, fmt.Errorf("rule %s: %w", r.ID, err)
			}
			if _, err := s.AddDerivation(r.Then.Label, r.ID); err != nil {
				return res, fmt.Errorf("rule %s: %w", r.ID, err)
			}
			res.Firings = append(res.Firings, Firing{Pass: pass, RuleID: r.ID, Consequent: r.Then.Label, Added: added})
			if added {
				changed = true
				res.Added = append(res.Added, r.Then.Label)
			}
		}
		res.Passes = pass
		if !changed {
			res.Converged = true
			break
		}
	}
	return res, nil
}

func (r Rule) assert(s *graph.Session) (bool, error) {
	if r.Then.Kind == ontology.KindRiskFactor {
		return s.AddRiskFactor(r.Then.Label)
	}
	return s.AddDerivedState(r.Then.Label)
}

// #endregion apply

// #region match

func (r Rule) matches(s *graph.Session, evidence map[ontology.Label]bool) bool {
	if r.RequiresEvidence && len(evidence) == 0 {
		return false
	}
	if r.NoState && len(s.States()) > 0 {
		return false
	}
	for _, c := range r.All {
		if !c.holds(s, evidence) {
			return false
		}
	}
	for _, c := range r.None {
		if c.holds(s, evidence) {
			return false
		}
	}
	return true
}

func (c Clause) holds(s *graph.Session, evidence map[ontology.Label]bool) bool {
	for _, l := range c.AnyOf {
		switch c.Kind {
		case ontology.KindState:
			if s.HasState(l) {
				return true
			}
		case ontology.KindRiskFactor:
			if s.HasRiskFactor(l) {
				return true
			}
		default:
			if evidence[l] {
				return true
			}
		}
	}
	return false
}

// #endregion match
