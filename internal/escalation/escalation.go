package escalation

import (
	"fmt"

	"github.com/danielpatrickdp/session-reasoner/internal/explain"
	"github.com/danielpatrickdp/session-reasoner/internal/graph"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

// Disclaimer accompanies every decision.
const Disclaimer = "This system does not provide medical diagnosis or treatment."

var recommendations = map[ontology.EscalationLevel]string{
	ontology.EscalationCritical: "Immediate support may be beneficial. Please consider reaching out to a counselor, mental health professional, or trusted support person. Help is available.",
	ontology.EscalationHigh:     "Speaking with a counselor or mental health professional may be helpful. Support resources are available if you need them.",
	ontology.EscalationModerate: "Self-care and access to support resources may be beneficial. Consider speaking with someone you trust if concerns persist.",
	ontology.EscalationNone:     "No immediate escalation indicated. Continue healthy coping practices.",
}

// Recommendation returns the supportive text for a level.
func Recommendation(l ontology.EscalationLevel) string {
	return recommendations[l]
}

// #region findings
// FindingsFrom reads the escalation booleans from the session's derived
// facts.
func FindingsFrom(s *graph.Session) Findings {
	var f Findings
	for _, st := range s.States() {
		if ontology.ClassOf(st) == ontology.ClassCondition {
			f.ConditionStates++
		}
	}
	f.HighRisk = s.HasState(ontology.HighRisk)
	f.PanicWithPersistence = s.HasState(ontology.PanicRisk) && s.HasRiskFactor(ontology.RepeatedStressExposure)
	f.DepressiveSpectrum = s.HasState(ontology.DepressiveSpectrum)
	f.MultipleStates = f.ConditionStates >= 2
	f.ModerateRisk = s.HasState(ontology.ModerateRisk)
	return f
}

// For projects the findings onto one candidate state for the safety lookup.
func (f Findings) For(state ontology.Label) explain.SafetyFindings {
	return explain.SafetyFindings{
		HighRisk:           state == ontology.HighRisk,
		PanicRisk:          state == ontology.PanicRisk,
		ModerateRisk:       state == ontology.ModerateRisk,
		DepressiveSpectrum: state == ontology.DepressiveSpectrum,
		MultipleStates:     f.MultipleStates,
	}
}

// #endregion findings

// #region decider
// Decider applies the fixed escalation precedence.
type Decider struct{}

// NewDecider creates a decider.
func NewDecider() *Decider {
	return &Decider{}
}

// Decide collects every matched finding, then picks the level of the first
// one in precedence order. Reasons list all matches. A HIGH aggregated safety
// flag is recorded as an override but never changes the level.
func (d *Decider) Decide(f Findings, aggregated ontology.SafetyFlag) Decision {
	var matched []Triggered

	if f.HighRisk {
		matched = append(matched, Triggered{
			Trigger: TriggerHighRisk,
			Level:   ontology.EscalationCritical,
			Reason:  "Elevated concern level derived from panic indicators and repeated stress exposure",
		})
	}
	if f.PanicWithPersistence {
		matched = append(matched, Triggered{
			Trigger: TriggerPanicWithPersistence,
			Level:   ontology.EscalationHigh,
			Reason:  "Panic indicators present together with repeated stress exposure",
		})
	}
	if f.DepressiveSpectrum {
		matched = append(matched, Triggered{
			Trigger: TriggerDepressiveSpectrum,
			Level:   ontology.EscalationHigh,
			Reason:  "Depressive spectrum indicators present",
		})
	}
	if f.MultipleStates {
		matched = append(matched, Triggered{
			Trigger: TriggerMultipleStates,
			Level:   ontology.EscalationModerate,
			Reason:  fmt.Sprintf("Multiple concurrent mental-state patterns (%d)", f.ConditionStates),
		})
	}
	if f.ModerateRisk {
		matched = append(matched, Triggered{
			Trigger: TriggerModerateRisk,
			Level:   ontology.EscalationModerate,
			Reason:  "Moderate risk level derived",
		})
	}

	dec := Decision{
		Level:          ontology.EscalationNone,
		Triggered:      matched,
		SafetyOverride: aggregated == ontology.SafetyHigh,
		Disclaimer:     Disclaimer,
		Findings:       f,
	}
	if len(matched) == 0 {
		dec.Triggered = []Triggered{}
		dec.Reasons = []string{"No escalation triggers detected"}
	} else {
		dec.Level = matched[0].Level
		for _, m := range matched {
			dec.Reasons = append(dec.Reasons, m.Reason)
		}
	}
	dec.Recommendation = Recommendation(dec.Level)
	return dec
}

// #endregion decider
