package graph

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

// #region types

type spKey struct{ s, p string }
type poKey struct{ p, o string }

// Session is the append-only fact table for one conversational session.
// A nil or zero Session has no active session and rejects every mutation.
// Not safe for concurrent mutation; callers serialize turns per session.
type Session struct {
	id        string
	subject   string
	createdAt time.Time

	facts []Fact
	index map[Fact]struct{}
	bySP  map[spKey][]string
	byPO  map[poKey][]string

	nextEvidence int
	nextTurn     int
	currentTurn  string
}

// #endregion types

// #region constructor

// CreateSession starts a new session for subject. An empty sessionID gets a
// generated "session_<uuid>" identifier.
func CreateSession(subject, sessionID string) (*Session, error) {
	return CreateSessionAt(subject, sessionID, time.Now().UTC())
}

// CreateSessionAt is CreateSession with an explicit creation timestamp.
func CreateSessionAt(subject, sessionID string, createdAt time.Time) (*Session, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, fmt.Errorf("create session: empty subject id")
	}
	if sessionID == "" {
		sessionID = "session_" + uuid.New().String()
	}
	s := newSession()
	s.id = sessionID
	s.subject = subject
	s.createdAt = createdAt.UTC().Truncate(time.Second)

	node := s.sessionNode()
	s.add(Fact{node, PredType, classSession})
	s.add(Fact{node, PredSessionID, sessionID})
	s.add(Fact{node, PredHasSubject, subject})
	s.add(Fact{node, PredTimestamp, s.createdAt.Format(time.RFC3339)})
	return s, nil
}

func newSession() *Session {
	return &Session{
		index: make(map[Fact]struct{}),
		bySP:  make(map[spKey][]string),
		byPO:  make(map[poKey][]string),
	}
}

// #endregion constructor

// #region accessors

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SubjectID returns the subject the session is linked to.
func (s *Session) SubjectID() string { return s.subject }

// CreatedAt returns the creation timestamp recorded in the graph.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Len returns the number of facts.
func (s *Session) Len() int { return len(s.facts) }

// Facts returns a copy of every fact in insertion order.
func (s *Session) Facts() []Fact {
	out := make([]Fact, len(s.facts))
	copy(out, s.facts)
	return out
}

// Has reports whether the exact fact is present.
func (s *Session) Has(f Fact) bool {
	_, ok := s.index[f]
	return ok
}

func (s *Session) sessionNode() string { return "session:" + s.id }
func (s *Session) subjectNode() string { return "subject:" + s.subject }

// RequireActive returns NoActiveSessionError for a nil or zero session.
func (s *Session) RequireActive(op string) error {
	return s.active(op)
}

func (s *Session) active(op string) error {
	if s == nil || s.id == "" {
		return &NoActiveSessionError{Op: op}
	}
	return nil
}

// #endregion accessors

// #region mutation

// add appends f unless already present. Reports whether it was new.
func (s *Session) add(f Fact) bool {
	if _, ok := s.index[f]; ok {
		return false
	}
	s.facts = append(s.facts, f)
	s.index[f] = struct{}{}
	sp := spKey{f.Subject, f.Predicate}
	s.bySP[sp] = append(s.bySP[sp], f.Object)
	po := poKey{f.Predicate, f.Object}
	s.byPO[po] = append(s.byPO[po], f.Subject)
	return true
}

// BeginTurn appends a turn marker. Evidence added afterwards is linked to it.
func (s *Session) BeginTurn() (string, error) {
	if err := s.active("begin turn"); err != nil {
		return "", err
	}
	s.nextTurn++
	turn := "turn_" + strconv.Itoa(s.nextTurn)
	s.add(Fact{s.sessionNode(), PredHasTurn, turn})
	s.currentTurn = turn
	return turn, nil
}

// AddEvidence appends an evidence node of the given emotion, symptom or
// trigger type and returns its identifier.
func (s *Session) AddEvidence(label ontology.Label) (string, error) {
	if err := s.active("add evidence"); err != nil {
		return "", err
	}
	kind, ok := ontology.KindOf(label)
	if !ok || !kind.Evidence() {
		return "", &ontology.InvalidLabelError{Field: "evidence", Value: string(label)}
	}
	id := "ev_" + strconv.Itoa(s.nextEvidence)
	s.nextEvidence++
	s.add(Fact{s.sessionNode(), PredHasEvidence, id})
	s.add(Fact{id, PredType, string(label)})
	if s.currentTurn != "" {
		s.add(Fact{id, PredInTurn, s.currentTurn})
	}
	return id, nil
}

// SetConfidence attaches a confidence label to an evidence node.
func (s *Session) SetConfidence(evidenceID string, c ontology.ConfidenceLabel) error {
	if err := s.active("set confidence"); err != nil {
		return err
	}
	if _, err := ontology.ParseConfidence(string(c)); err != nil {
		return err
	}
	if !s.Has(Fact{s.sessionNode(), PredHasEvidence, evidenceID}) {
		return fmt.Errorf("set confidence: unknown evidence %q", evidenceID)
	}
	if len(s.bySP[spKey{evidenceID, PredConfidence}]) > 0 {
		return fmt.Errorf("set confidence: evidence %q already labelled", evidenceID)
	}
	s.add(Fact{evidenceID, PredConfidence, string(c)})
	return nil
}

// SetPersistence attaches a persistence label to an evidence node.
func (s *Session) SetPersistence(evidenceID string, p ontology.Persistence) error {
	if err := s.active("set persistence"); err != nil {
		return err
	}
	if _, err := ontology.ParsePersistence(string(p)); err != nil {
		return err
	}
	if !s.Has(Fact{s.sessionNode(), PredHasEvidence, evidenceID}) {
		return fmt.Errorf("set persistence: unknown evidence %q", evidenceID)
	}
	if len(s.bySP[spKey{evidenceID, PredPersistence}]) > 0 {
		return fmt.Errorf("set persistence: evidence %q already labelled", evidenceID)
	}
	s.add(Fact{evidenceID, PredPersistence, string(p)})
	return nil
}

// AddRiskFactor attaches a risk factor to the subject. Reports whether the
// fact was new.
func (s *Session) AddRiskFactor(label ontology.Label) (bool, error) {
	if err := s.active("add risk factor"); err != nil {
		return false, err
	}
	if k, ok := ontology.KindOf(label); !ok || k != ontology.KindRiskFactor {
		return false, &ontology.InvalidLabelError{Field: "risk_factor", Value: string(label)}
	}
	return s.add(Fact{s.subjectNode(), PredRiskFactor, string(label)}), nil
}

// AddDerivedState asserts that the subject is of the given state category.
// Reports whether the fact was new.
func (s *Session) AddDerivedState(label ontology.Label) (bool, error) {
	if err := s.active("add derived state"); err != nil {
		return false, err
	}
	if k, ok := ontology.KindOf(label); !ok || k != ontology.KindState {
		return false, &ontology.InvalidLabelError{Field: "state", Value: string(label)}
	}
	return s.add(Fact{s.subjectNode(), PredState, string(label)}), nil
}

// AddDerivation records that ruleID supports the consequent fact label.
func (s *Session) AddDerivation(consequent ontology.Label, ruleID string) (bool, error) {
	if err := s.active("add derivation"); err != nil {
		return false, err
	}
	if ruleID == "" {
		return false, fmt.Errorf("add derivation: empty rule id")
	}
	return s.add(Fact{string(consequent), PredDerivedBy, ruleID}), nil
}

// RecordAuditRef links a turn to the hash of its audit record.
func (s *Session) RecordAuditRef(turn, hash string) error {
	if err := s.active("record audit ref"); err != nil {
		return err
	}
	if !s.Has(Fact{s.sessionNode(), PredHasTurn, turn}) {
		return fmt.Errorf("record audit ref: unknown turn %q", turn)
	}
	s.add(Fact{turn, PredAuditRef, hash})
	return nil
}

// #endregion mutation

// #region queries

// Objects returns the objects of every fact with the given subject and
// predicate, in insertion order.
func (s *Session) Objects(subject, predicate string) []string {
	return append([]string(nil), s.bySP[spKey{subject, predicate}]...)
}

// Subjects returns the subjects of every fact with the given predicate and
// object, in insertion order.
func (s *Session) Subjects(predicate, object string) []string {
	return append([]string(nil), s.byPO[poKey{predicate, object}]...)
}

// States returns derived state labels in derivation order.
func (s *Session) States() []ontology.Label {
	return toLabels(s.bySP[spKey{s.subjectNode(), PredState}])
}

// HasState reports whether the state has been derived.
func (s *Session) HasState(l ontology.Label) bool {
	return s.Has(Fact{s.subjectNode(), PredState, string(l)})
}

// RiskFactors returns risk factor labels in insertion order.
func (s *Session) RiskFactors() []ontology.Label {
	return toLabels(s.bySP[spKey{s.subjectNode(), PredRiskFactor}])
}

// HasRiskFactor reports whether the risk factor is attached to the subject.
func (s *Session) HasRiskFactor(l ontology.Label) bool {
	return s.Has(Fact{s.subjectNode(), PredRiskFactor, string(l)})
}

// Derivations returns the rule ids recorded as supporting a consequent.
func (s *Session) Derivations(consequent ontology.Label) []string {
	return s.Objects(string(consequent), PredDerivedBy)
}

// Evidence returns every evidence node in assignment order.
func (s *Session) Evidence() []EvidenceItem {
	ids := s.bySP[spKey{s.sessionNode(), PredHasEvidence}]
	out := make([]EvidenceItem, 0, len(ids))
	for _, id := range ids {
		item := EvidenceItem{ID: id}
		if v := s.bySP[spKey{id, PredType}]; len(v) > 0 {
			item.Type = ontology.Label(v[0])
		}
		if v := s.bySP[spKey{id, PredConfidence}]; len(v) > 0 {
			item.Confidence = ontology.ConfidenceLabel(v[0])
		}
		if v := s.bySP[spKey{id, PredPersistence}]; len(v) > 0 {
			item.Persistence = ontology.Persistence(v[0])
		}
		if v := s.bySP[spKey{id, PredInTurn}]; len(v) > 0 {
			item.Turn = v[0]
		}
		out = append(out, item)
	}
	return out
}

// EvidenceTypes returns the set of evidence type labels present.
func (s *Session) EvidenceTypes() map[ontology.Label]bool {
	out := make(map[ontology.Label]bool)
	for _, item := range s.Evidence() {
		out[item.Type] = true
	}
	return out
}

// Turns returns turn markers in order.
func (s *Session) Turns() []string {
	return s.Objects(s.sessionNode(), PredHasTurn)
}

// LastAuditRef returns the audit hash of the most recent turn that has one.
func (s *Session) LastAuditRef() string {
	turns := s.Turns()
	for i := len(turns) - 1; i >= 0; i-- {
		if refs := s.bySP[spKey{turns[i], PredAuditRef}]; len(refs) > 0 {
			return refs[0]
		}
	}
	return ""
}

func toLabels(vs []string) []ontology.Label {
	out := make([]ontology.Label, len(vs))
	for i, v := range vs {
		out[i] = ontology.Label(v)
	}
	return out
}

// #endregion queries
