package extract

import (
	"github.com/danielpatrickdp/session-reasoner/internal/evidence"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

type conceptGroup struct {
	field    string
	category string
	labels   map[string]string
}

// groups maps the extractor's lower-case concepts onto ontology labels, in
// the order signals are emitted.
var groups = []conceptGroup{
	{field: "emotions", category: string(ontology.KindEmotion), labels: map[string]string{
		"stress":       string(ontology.Stress),
		"anxiety":      string(ontology.Anxiety),
		"panic":        string(ontology.Panic),
		"sadness":      string(ontology.Sadness),
		"depression":   string(ontology.Depression),
		"irritability": string(ontology.Irritability),
		"overwhelm":    string(ontology.Overwhelm),
	}},
	{field: "symptoms", category: string(ontology.KindSymptom), labels: map[string]string{
		"insomnia":       string(ontology.Insomnia),
		"fatigue":        string(ontology.Fatigue),
		"restlessness":   string(ontology.Restlessness),
		"heart_symptoms": string(ontology.RapidHeartRate),
		"breathing":      string(ontology.BreathingDifficulty),
		"appetite":       string(ontology.AppetiteChange),
		"withdrawal":     string(ontology.Withdrawal),
		"anhedonia":      string(ontology.Anhedonia),
		"concentration":  string(ontology.ConcentrationDifficulty),
	}},
	{field: "triggers", category: string(ontology.KindTrigger), labels: map[string]string{
		"academic":  string(ontology.Academic),
		"financial": string(ontology.Financial),
		"family":    string(ontology.Family),
		"social":    string(ontology.Social),
		"work":      string(ontology.Work),
	}},
}

func confidenceFor(intensity string) string {
	switch intensity {
	case "high":
		return string(ontology.ConfidenceHigh)
	case "medium":
		return string(ontology.ConfidenceMedium)
	case "low":
		return string(ontology.ConfidenceLow)
	}
	return ""
}

// mapConcepts converts concept names per field ("emotions", "symptoms",
// "triggers") into signals, in group order.
func mapConcepts(concepts map[string][]string, intensity string) Result {
	res := Result{Intensity: intensity}
	conf := confidenceFor(intensity)
	for _, group := range groups {
		for _, concept := range concepts[group.field] {
			label, ok := group.labels[concept]
			if !ok {
				res.Unmapped = append(res.Unmapped, concept)
				continue
			}
			res.Signals = append(res.Signals, evidence.Signal{
				Label:       label,
				Category:    group.category,
				SurfaceText: concept,
				Confidence:  conf,
			})
		}
	}
	return res
}
