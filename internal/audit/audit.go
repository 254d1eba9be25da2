package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/danielpatrickdp/session-reasoner/internal/escalation"
	"github.com/danielpatrickdp/session-reasoner/internal/evidence"
	"github.com/danielpatrickdp/session-reasoner/internal/explain"
	"github.com/danielpatrickdp/session-reasoner/internal/graph"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
	"github.com/danielpatrickdp/session-reasoner/internal/ranking"
	"github.com/danielpatrickdp/session-reasoner/internal/rules"
)

const hashLen = 16

var layers = map[string]string{
	"evidence":    "session_graph",
	"inference":   "symbolic_rules",
	"explanation": "template_explainer",
	"ranking":     "lexicographic_priority",
	"escalation":  "precedence_table",
}

// #region build
// Input gathers the stage outputs for one turn.
type Input struct {
	Session      *graph.Session
	Turn         string
	Signals      []evidence.Signal
	Intake       evidence.IntakeResult
	Fixpoint     rules.Result
	Table        *rules.Table
	Explanations []explain.Explanation
	Ranking      ranking.Result
	Escalation   escalation.Decision
}

// Build assembles and hashes the record for a turn. The timestamp is the
// session creation time and prev_hash is the session's last audit ref, so a
// reloaded graph rebuilds the same record.
func Build(in Input) (Record, error) {
	if err := in.Session.RequireActive("build audit record"); err != nil {
		return Record{}, err
	}
	s := in.Session

	rec := Record{
		SessionID:       s.ID(),
		SubjectID:       s.SubjectID(),
		Timestamp:       s.CreatedAt().Format(time.RFC3339),
		Turn:            in.Turn,
		PipelineVersion: PipelineVersion,
		Signals:         nonNil(in.Signals),
		Intake: IntakeSummary{
			Accepted:   nonNil(in.Intake.Accepted),
			Rejected:   nonNil(in.Intake.Rejected),
			Duplicates: in.Intake.Duplicates,
		},
		Inference:    inferenceSummary(s, in.Fixpoint),
		Explanations: nonNil(in.Explanations),
		Ranking:      in.Ranking,
		Escalation:   in.Escalation,
		Provenance: Provenance{
			RuleIDs:         in.Table.IDs(),
			RuleTableDigest: in.Table.Digest,
			RuleSource:      in.Table.Source,
			Layers:          layers,
		},
		Guarantees: DefaultGuarantees(),
		Disclaimer: Disclaimer,
		PrevHash:   s.LastAuditRef(),
	}
	h, err := Hash(rec)
	if err != nil {
		return Record{}, err
	}
	rec.RecordHash = h
	return rec, nil
}

func inferenceSummary(s *graph.Session, fx rules.Result) InferenceSummary {
	states := s.States()
	slices.Sort(states)
	risk := s.RiskFactors()
	slices.Sort(risk)

	var fired []string
	for _, l := range append(s.States(), s.RiskFactors()...) {
		for _, id := range s.Derivations(l) {
			if !slices.Contains(fired, id) {
				fired = append(fired, id)
			}
		}
	}
	slices.Sort(fired)

	return InferenceSummary{
		DerivedStates: nonNil(states),
		RiskFactors:   nonNil(risk),
		RulesFired:    nonNil(fired),
		Passes:        fx.Passes,
		Converged:     fx.Converged,
	}
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}

// #endregion build

// #region hash
// Hash is the truncated sha256 of the record's canonical JSON with the
// record_hash field removed. Canonical means object keys sorted.
func Hash(rec Record) (string, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("hash record: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("hash record: %w", err)
	}
	delete(doc, "record_hash")
	canonical, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("hash record: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:hashLen], nil
}

// Verify recomputes the hash and compares it with the stored one.
func Verify(rec Record) bool {
	return VerifyErr(rec) == nil
}

// VerifyErr is Verify with the failure reason.
func VerifyErr(rec Record) error {
	h, err := Hash(rec)
	if err != nil {
		return err
	}
	if h != rec.RecordHash {
		return fmt.Errorf("%w: stored %s, computed %s", ErrHashMismatch, rec.RecordHash, h)
	}
	return nil
}

// #endregion hash

// #region decode
// Decode parses a stored record.
func Decode(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode audit record: %w", err)
	}
	return rec, nil
}

// Level is a shorthand for the record's escalation level.
func (r Record) Level() ontology.EscalationLevel { return r.Escalation.Level }

// #endregion decode
