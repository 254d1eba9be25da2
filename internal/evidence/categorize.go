package evidence

import (
	"github.com/danielpatrickdp/session-reasoner/internal/graph"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

// #region categorize

// Categorize groups the session's evidence and risk factors by static kind
// lookup. Unknown types are skipped.
func Categorize(s *graph.Session) Categories {
	var c Categories
	seen := make(map[ontology.Label]bool)
	put := func(l ontology.Label) {
		if seen[l] {
			return
		}
		kind, ok := ontology.KindOf(l)
		if !ok {
			return
		}
		seen[l] = true
		switch kind {
		case ontology.KindEmotion:
			c.Emotions = append(c.Emotions, l)
		case ontology.KindSymptom:
			c.Symptoms = append(c.Symptoms, l)
		case ontology.KindTrigger:
			c.Triggers = append(c.Triggers, l)
		case ontology.KindRiskFactor:
			c.RiskFactors = append(c.RiskFactors, l)
		}
	}
	for _, item := range s.Evidence() {
		put(item.Type)
	}
	for _, rf := range s.RiskFactors() {
		put(rf)
	}
	return c
}

// #endregion categorize

// #region metrics

// Total counts distinct entries across all four categories.
func (c Categories) Total() int {
	return len(c.Emotions) + len(c.Symptoms) + len(c.Triggers) + len(c.RiskFactors)
}

// NonEmpty counts categories with at least one entry.
func (c Categories) NonEmpty() int {
	n := 0
	for _, group := range [][]ontology.Label{c.Emotions, c.Symptoms, c.Triggers, c.RiskFactors} {
		if len(group) > 0 {
			n++
		}
	}
	return n
}

// Items flattens the categories into typed entries, emotions first.
func (c Categories) Items() []Item {
	var out []Item
	add := func(typ string, ls []ontology.Label) {
		for _, l := range ls {
			out = append(out, Item{Type: typ, Value: string(l)})
		}
	}
	add("Emotion", c.Emotions)
	add("Symptom", c.Symptoms)
	add("Trigger", c.Triggers)
	add("Risk Factor", c.RiskFactors)
	return out
}

// #endregion metrics
