package explain

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/session-reasoner/internal/evidence"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

// #region templates
var reasoning = map[ontology.Label]string{
	ontology.PanicRisk:          "Acute panic with physiological arousal matches patterns commonly associated with panic responses.",
	ontology.DepressiveSpectrum: "Low mood together with withdrawal, loss of interest or fatigue matches patterns associated with depressive experiences.",
	ontology.AnxietyRisk:        "The combination of anxiety with physical symptoms or life stressors aligns with patterns associated with elevated anxiety.",
	ontology.AcademicStress:     "Distress linked to academic or work pressure reflects situational stress in demanding settings.",
	ontology.SleepDisturbance:   "Sleep difficulty was reported without an accompanying anxiety pattern.",
	ontology.SocialIsolation:    "Withdrawal from others was reported without an accompanying depressive pattern.",
	ontology.ModerateRisk:       "A mental-state pattern combined with repeated stress exposure raises the level of concern.",
	ontology.HighRisk:           "Panic indicators combined with repeated stress exposure indicate an elevated level of concern.",
	ontology.NeedsMoreContext:   "Evidence was recorded but does not yet match any reasoning pattern.",
}

const (
	observationalNote = "This is an observational pattern, not a diagnosis or clinical assessment."
	supportNote       = "If you are experiencing ongoing distress, please consider reaching out to a counselor or trusted support person. Help is available."
)

// #endregion templates

// #region explainer

// Explainer turns categorized evidence and rule provenance into explanations.
type Explainer struct {
	descriptions map[string]string
}

// NewExplainer creates an explainer. descriptions maps rule ids to the text
// shown in causal chains; unknown ids are shown as-is.
func NewExplainer(descriptions map[string]string) *Explainer {
	return &Explainer{descriptions: descriptions}
}

// Explain builds the explanation for one candidate state. Confidence and
// safety are computed independently.
func (x *Explainer) Explain(in Input) Explanation {
	rules := append([]string(nil), in.Rules...)
	source := "graph"
	if len(rules) == 0 {
		source = UnknownRuleSource
		rules = []string{}
	}
	c := in.Categories

	return Explanation{
		State:              in.State,
		Description:        ontology.Describe(in.State),
		Reasoning:          reasoning[in.State],
		CausalChain:        x.causalChain(in.State, c, rules),
		Evidence:           c.Items(),
		Categories:         c,
		RulesFired:         rules,
		RuleSource:         source,
		Persistence:        in.Persistence,
		Confidence:         ConfidenceLabelFor(ConfidenceScore(len(rules), c.NonEmpty(), in.Persistence, c.Total())),
		SafetyFlag:         SafetyFlagFor(in.Findings),
		UncertaintyDrivers: uncertaintyDrivers(c, len(rules), in.Persistence),
		EvidenceGaps:       evidenceGaps(c),
		SupportNote:        supportNoteFor(SafetyFlagFor(in.Findings)),
		Notes:              observationalNote,
	}
}

// #endregion explainer

// #region causal-chain

// causalChain lists emotions, symptoms, triggers, risk factors, rules and the
// inferred state in that order, skipping empty stages.
func (x *Explainer) causalChain(state ontology.Label, c evidence.Categories, rules []string) []string {
	var chain []string
	if len(c.Emotions) > 0 {
		chain = append(chain, "Emotional state observed: "+join(c.Emotions))
	}
	if len(c.Symptoms) > 0 {
		chain = append(chain, "Symptoms manifested: "+join(c.Symptoms))
	}
	if len(c.Triggers) > 0 {
		chain = append(chain, "Triggers identified: "+join(c.Triggers))
	}
	if len(c.RiskFactors) > 0 {
		chain = append(chain, "Risk factors present: "+join(c.RiskFactors))
	}
	if len(rules) > 0 {
		descs := make([]string, len(rules))
		for i, id := range rules {
			descs[i] = id
			if d, ok := x.descriptions[id]; ok && d != "" {
				descs[i] = d
			}
		}
		chain = append(chain, "Reasoning patterns matched: "+strings.Join(descs, "; "))
	} else {
		chain = append(chain, "Reasoning patterns matched: "+UnknownRuleSource)
	}
	chain = append(chain, "Mental state inferred: "+ontology.Describe(state))
	return chain
}

func join(ls []ontology.Label) string {
	parts := make([]string, len(ls))
	for i, l := range ls {
		parts[i] = string(l)
	}
	return strings.Join(parts, ", ")
}

// #endregion causal-chain

// #region confidence

// ConfidenceScore is the symbolic point score behind a confidence label. It
// is never exposed to callers.
func ConfidenceScore(ruleCount, nonEmptyCategories int, persistence bool, totalEvidence int) int {
	score := tier(ruleCount, 1, 2, 3) + tier(nonEmptyCategories, 2, 3, 4)
	if persistence {
		score++
	}
	if totalEvidence >= 5 {
		score++
	}
	return score
}

// ConfidenceLabelFor maps a point score: >=7 HIGH, >=4 MEDIUM, else LOW.
func ConfidenceLabelFor(score int) ontology.ConfidenceLabel {
	switch {
	case score >= 7:
		return ontology.ConfidenceHigh
	case score >= 4:
		return ontology.ConfidenceMedium
	}
	return ontology.ConfidenceLow
}

// RuleScore maps a rule count onto 0..3 (thresholds 1, 2, 3).
func RuleScore(ruleCount int) int { return tier(ruleCount, 1, 2, 3) }

// DiversityScore maps non-empty categories onto 0..3 (thresholds 2, 3, 4).
func DiversityScore(nonEmpty int) int { return tier(nonEmpty, 2, 3, 4) }

func tier(n, low, mid, high int) int {
	switch {
	case n >= high:
		return 3
	case n >= mid:
		return 2
	case n >= low:
		return 1
	}
	return 0
}

// #endregion confidence

// #region safety

// SafetyFlagFor is the fixed lookup from escalation booleans to a flag.
func SafetyFlagFor(f SafetyFindings) ontology.SafetyFlag {
	switch {
	case f.HighRisk || f.PanicRisk:
		return ontology.SafetyHigh
	case f.ModerateRisk || f.DepressiveSpectrum || f.MultipleStates:
		return ontology.SafetyModerate
	}
	return ontology.SafetyNone
}

func supportNoteFor(flag ontology.SafetyFlag) string {
	if flag == ontology.SafetyHigh {
		return supportNote
	}
	return ""
}

// #endregion safety

// #region uncertainty

func uncertaintyDrivers(c evidence.Categories, ruleCount int, persistence bool) []string {
	drivers := []string{}
	total := c.Total()
	if total < 3 {
		drivers = append(drivers, "Limited evidence: fewer than 3 distinct factors identified")
	}
	switch ruleCount {
	case 0:
		drivers = append(drivers, "No explicit rules: inference based on class membership only")
	case 1:
		drivers = append(drivers, "Single reasoning pattern: only one rule matched the evidence")
	}
	if !persistence && total > 0 {
		drivers = append(drivers, "Missing persistence: no repeated stress exposure detected")
	}
	if c.NonEmpty() < 2 {
		drivers = append(drivers, "Weak causal diversity: evidence from only one category")
	}
	return drivers
}

// evidenceGaps notes absent evidence, kept apart from uncertainty drivers.
func evidenceGaps(c evidence.Categories) []string {
	gaps := []string{}
	if len(c.Symptoms) == 0 && len(c.Emotions) > 0 {
		gaps = append(gaps, "No physiological symptoms: emotional evidence only")
	}
	if len(c.Triggers) == 0 {
		gaps = append(gaps, "No situational triggers identified")
	}
	return gaps
}

// #endregion uncertainty

// Summary renders a one-line description of an explanation for logs.
func Summary(e Explanation) string {
	return fmt.Sprintf("%s (confidence=%s safety=%s rules=%d)", e.Description, e.Confidence, e.SafetyFlag, e.RuleCount())
}
