package evidence

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/session-reasoner/internal/graph"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

// #region validate

// Validate checks a signal against the closed ontology and returns its label
// and optional confidence.
func Validate(sig Signal) (ontology.Label, ontology.ConfidenceLabel, error) {
	kind, err := ontology.ParseKind(sig.Category)
	if err != nil || !kind.Evidence() {
		return "", "", &ontology.InvalidLabelError{Field: "category", Value: sig.Category}
	}
	label, err := ontology.ParseLabel(sig.Label, kind)
	if err != nil {
		return "", "", err
	}
	var conf ontology.ConfidenceLabel
	if sig.Confidence != "" {
		if conf, err = ontology.ParseConfidence(sig.Confidence); err != nil {
			return "", "", err
		}
	}
	return label, conf, nil
}

// #endregion validate

// #region intake

// Intake records a turn's signals as evidence in s. Labels already seen in
// an earlier turn are marked RECURRING, first sightings TRANSIENT. A label
// repeated within the same turn is recorded once. Invalid signals are
// reported in Rejected; only session-level failures return an error.
func Intake(s *graph.Session, signals []Signal) (IntakeResult, error) {
	var res IntakeResult
	if err := s.RequireActive("intake"); err != nil {
		return res, err
	}

	prior := make(map[ontology.Label]bool)
	for _, item := range s.Evidence() {
		prior[item.Type] = true
	}
	thisTurn := make(map[ontology.Label]bool)

	for _, sig := range signals {
		label, conf, err := Validate(sig)
		if err != nil {
			var ile *ontology.InvalidLabelError
			if !errors.As(err, &ile) {
				return res, err
			}
			res.Rejected = append(res.Rejected, Rejected{Signal: sig, Reason: err.Error()})
			continue
		}
		if thisTurn[label] {
			res.Duplicates++
			continue
		}
		thisTurn[label] = true

		id, err := s.AddEvidence(label)
		if err != nil {
			return res, fmt.Errorf("intake %s: %w", label, err)
		}
		persistence := ontology.PersistenceTransient
		if prior[label] {
			persistence = ontology.PersistenceRecurring
		}
		if err := s.SetPersistence(id, persistence); err != nil {
			return res, fmt.Errorf("intake %s: %w", label, err)
		}
		if conf != "" {
			if err := s.SetConfidence(id, conf); err != nil {
				return res, fmt.Errorf("intake %s: %w", label, err)
			}
		}
		res.Accepted = append(res.Accepted, Accepted{EvidenceID: id, Label: label, Persistence: persistence})
	}
	return res, nil
}

// #endregion intake
