package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/session-reasoner/internal/audit"
	"github.com/danielpatrickdp/session-reasoner/internal/evidence"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture. Turns run in
// order against one fresh session directory, so later sessions of a subject
// see the earlier ones.
type Fixture struct {
	Description string        `json:"description"`
	Turns       []FixtureTurn `json:"turns"`
}

// FixtureTurn is one recorded call to the reasoner.
type FixtureTurn struct {
	SessionID string            `json:"session_id"`
	SubjectID string            `json:"subject_id"`
	CreatedAt time.Time         `json:"created_at,omitzero"` // session creation time, pins the audit timestamp
	Signals   []evidence.Signal `json:"signals"`
	Expected  Expected          `json:"expected"`
}

// Expected captures the outcome compared per turn. An empty AuditRef is not
// compared.
type Expected struct {
	DerivedStates   []ontology.Label         `json:"derived_states"`
	EscalationLevel ontology.EscalationLevel `json:"escalation_level"`
	PrimaryConcern  ontology.Label           `json:"primary_concern,omitempty"`
	AuditRef        string                   `json:"audit_ref,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	for i, t := range f.Turns {
		if t.SessionID == "" || t.SubjectID == "" {
			return nil, fmt.Errorf("fixture %s: turn %d: session_id and subject_id are required", path, i)
		}
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// FromRecords rebuilds a fixture from stored audit records, in the order
// given. Expected values are taken from the records, audit refs included.
func FromRecords(description string, recs []audit.Record) (*Fixture, error) {
	f := &Fixture{Description: description}
	for _, rec := range recs {
		created, err := time.Parse(time.RFC3339, rec.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("record %s/%s: timestamp: %w", rec.SessionID, rec.Turn, err)
		}
		exp := Expected{
			DerivedStates:   rec.Inference.DerivedStates,
			EscalationLevel: rec.Level(),
			AuditRef:        rec.RecordHash,
		}
		if rec.Ranking.PrimaryConcern != "" {
			exp.PrimaryConcern = rec.Ranking.PrimaryConcern
		}
		f.Turns = append(f.Turns, FixtureTurn{
			SessionID: rec.SessionID,
			SubjectID: rec.SubjectID,
			CreatedAt: created.UTC(),
			Signals:   rec.Signals,
			Expected:  exp,
		})
	}
	return f, nil
}

// #endregion fixture-loader
