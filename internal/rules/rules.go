package rules

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

//go:embed rules.yaml
var defaultRules []byte

// DefaultMaxPasses bounds the fixpoint. Rule dependency depth is at most 2.
const DefaultMaxPasses = 2

// #region types

// Clause holds when any label in AnyOf is present for its kind.
type Clause struct {
	Kind  ontology.Kind
	AnyOf []ontology.Label
}

// Consequent is the fact a rule adds.
type Consequent struct {
	Kind  ontology.Kind
	Label ontology.Label
}

// Rule is one compiled pattern-to-fact rule.
type Rule struct {
	ID               string
	Description      string
	All              []Clause
	None             []Clause
	NoState          bool // holds only while no state fact exists
	RequiresEvidence bool
	Then             Consequent
}

// Table is a validated, ordered rule list.
type Table struct {
	Rules     []Rule
	MaxPasses int
	Digest    string // short sha256 of the source document
	Source    string
}

// Current returns the table itself so a fixed table can stand in for a
// reloading watcher.
func (t *Table) Current() *Table { return t }

// IDs lists rule ids in evaluation order.
func (t *Table) IDs() []string {
	out := make([]string, len(t.Rules))
	for i, r := range t.Rules {
		out[i] = r.ID
	}
	return out
}

// Descriptions maps rule ids to their descriptions.
func (t *Table) Descriptions() map[string]string {
	out := make(map[string]string, len(t.Rules))
	for _, r := range t.Rules {
		out[r.ID] = r.Description
	}
	return out
}

// RuleConfigurationError reports a malformed rule definition at load time.
type RuleConfigurationError struct {
	Source string
	Rule   string
	Reason string
}

func (e *RuleConfigurationError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("rule configuration %s: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("rule configuration %s: rule %s: %s", e.Source, e.Rule, e.Reason)
}

// #endregion types

// #region document
type document struct {
	MaxPasses int       `yaml:"max_passes"`
	Rules     []ruleDoc `yaml:"rules"`
}

type ruleDoc struct {
	ID               string      `yaml:"id"`
	Description      string      `yaml:"description"`
	All              []clauseDoc `yaml:"all"`
	None             []clauseDoc `yaml:"none"`
	NoState          bool        `yaml:"no_state"`
	RequiresEvidence bool        `yaml:"requires_evidence"`
	Then             thenDoc     `yaml:"then"`
}

type clauseDoc struct {
	Kind  string   `yaml:"kind"`
	AnyOf []string `yaml:"any_of"`
}

type thenDoc struct {
	Kind  string `yaml:"kind"`
	Label string `yaml:"label"`
}

// #endregion document

// #region load

// Default compiles the embedded rule table.
func Default() (*Table, error) {
	return Parse(defaultRules, "embedded:rules.yaml")
}

// LoadFile compiles a rule table from a YAML file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse compiles and validates a YAML rule document. Every label must exist
// in the ontology under the declared kind.
func Parse(data []byte, source string) (*Table, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &RuleConfigurationError{Source: source, Reason: fmt.Sprintf("parse: %v", err)}
	}
	if len(doc.Rules) == 0 {
		return nil, &RuleConfigurationError{Source: source, Reason: "no rules defined"}
	}

	t := &Table{MaxPasses: doc.MaxPasses, Source: source}
	if t.MaxPasses == 0 {
		t.MaxPasses = DefaultMaxPasses
	}
	if t.MaxPasses < 1 {
		return nil, &RuleConfigurationError{Source: source, Reason: fmt.Sprintf("max_passes %d must be positive", doc.MaxPasses)}
	}

	seen := make(map[string]bool)
	for _, rd := range doc.Rules {
		r, err := compileRule(rd)
		if err != nil {
			return nil, &RuleConfigurationError{Source: source, Rule: rd.ID, Reason: err.Error()}
		}
		if seen[r.ID] {
			return nil, &RuleConfigurationError{Source: source, Rule: r.ID, Reason: "duplicate rule id"}
		}
		seen[r.ID] = true
		t.Rules = append(t.Rules, r)
	}

	if depth, err := dependencyDepth(t.Rules); err != nil {
		return nil, &RuleConfigurationError{Source: source, Reason: err.Error()}
	} else if depth > t.MaxPasses {
		return nil, &RuleConfigurationError{Source: source, Reason: fmt.Sprintf("dependency depth %d exceeds max_passes %d", depth, t.MaxPasses)}
	}

	sum := sha256.Sum256(data)
	t.Digest = hex.EncodeToString(sum[:])[:16]
	return t, nil
}

// WithMaxPasses returns a copy of the table with a different pass bound.
func (t *Table) WithMaxPasses(n int) (*Table, error) {
	if n < 1 {
		return nil, &RuleConfigurationError{Source: t.Source, Reason: fmt.Sprintf("max passes %d must be positive", n)}
	}
	depth, err := dependencyDepth(t.Rules)
	if err != nil {
		return nil, &RuleConfigurationError{Source: t.Source, Reason: err.Error()}
	}
	if depth > n {
		return nil, &RuleConfigurationError{Source: t.Source, Reason: fmt.Sprintf("dependency depth %d exceeds max passes %d", depth, n)}
	}
	cp := *t
	cp.MaxPasses = n
	return &cp, nil
}

func compileRule(rd ruleDoc) (Rule, error) {
	if rd.ID == "" {
		return Rule{}, fmt.Errorf("missing id")
	}
	r := Rule{
		ID:               rd.ID,
		Description:      rd.Description,
		NoState:          rd.NoState,
		RequiresEvidence: rd.RequiresEvidence,
	}
	var err error
	if r.All, err = compileClauses(rd.All); err != nil {
		return Rule{}, err
	}
	if r.None, err = compileClauses(rd.None); err != nil {
		return Rule{}, err
	}
	if len(r.All) == 0 && !r.NoState && !r.RequiresEvidence {
		return Rule{}, fmt.Errorf("no antecedent")
	}

	kind, err := ontology.ParseKind(rd.Then.Kind)
	if err != nil {
		return Rule{}, fmt.Errorf("consequent: %w", err)
	}
	if kind != ontology.KindState && kind != ontology.KindRiskFactor {
		return Rule{}, fmt.Errorf("consequent kind %q must be state or risk_factor", kind)
	}
	label, err := ontology.ParseLabel(rd.Then.Label, kind)
	if err != nil {
		return Rule{}, fmt.Errorf("consequent: %w", err)
	}
	r.Then = Consequent{Kind: kind, Label: label}
	return r, nil
}

func compileClauses(docs []clauseDoc) ([]Clause, error) {
	out := make([]Clause, 0, len(docs))
	for _, cd := range docs {
		kind, err := ontology.ParseKind(cd.Kind)
		if err != nil {
			return nil, err
		}
		if len(cd.AnyOf) == 0 {
			return nil, fmt.Errorf("%s clause lists no labels", kind)
		}
		c := Clause{Kind: kind}
		for _, s := range cd.AnyOf {
			l, err := ontology.ParseLabel(s, kind)
			if err != nil {
				return nil, err
			}
			c.AnyOf = append(c.AnyOf, l)
		}
		out = append(out, c)
	}
	return out, nil
}

// #endregion load

// #region dependency-depth

// dependencyDepth returns the longest chain of rules where each requires (in
// All) a label the previous one produces. Negated labels must be produced
// only by rules ordered earlier, so a guard never flips within a pass.
// NoState guards are not counted. Cycles are rejected.
func dependencyDepth(rs []Rule) (int, error) {
	producers := make(map[ontology.Label][]int)
	for i, r := range rs {
		producers[r.Then.Label] = append(producers[r.Then.Label], i)
	}
	for i, r := range rs {
		for _, c := range r.None {
			for _, l := range c.AnyOf {
				for _, p := range producers[l] {
					if p >= i {
						return 0, fmt.Errorf("rule %s negates %s, which rule %s produces later", r.ID, l, rs[p].ID)
					}
				}
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(rs))
	depth := make([]int, len(rs))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case visiting:
			return fmt.Errorf("rule %s depends on itself", rs[i].ID)
		case done:
			return nil
		}
		state[i] = visiting
		d := 1
		for _, c := range rs[i].All {
			for _, l := range c.AnyOf {
				for _, p := range producers[l] {
					if err := visit(p); err != nil {
						return err
					}
					if depth[p]+1 > d {
						d = depth[p] + 1
					}
				}
			}
		}
		depth[i] = d
		state[i] = done
		return nil
	}

	longest := 0
	for i := range rs {
		if err := visit(i); err != nil {
			return 0, err
		}
		if depth[i] > longest {
			longest = depth[i]
		}
	}
	return longest, nil
}

// #endregion dependency-depth
