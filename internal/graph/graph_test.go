package graph

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

var fixedTime = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := CreateSessionAt("student-1", "s1", fixedTime)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}

// #region test-create
func TestCreateSessionGeneratesID(t *testing.T) {
	s, err := CreateSession("student-1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(s.ID(), "session_") {
		t.Errorf("expected session_ prefix, got %q", s.ID())
	}
	if s.SubjectID() != "student-1" {
		t.Errorf("subject = %q", s.SubjectID())
	}
}

func TestCreateSessionRejectsEmptySubject(t *testing.T) {
	if _, err := CreateSession("  ", "s1"); err == nil {
		t.Fatal("expected error for empty subject")
	}
}

func TestMutationWithoutSession(t *testing.T) {
	var nilSession *Session
	var zero Session

	for name, s := range map[string]*Session{"nil": nilSession, "zero": &zero} {
		t.Run(name, func(t *testing.T) {
			var nas *NoActiveSessionError
			if _, err := s.AddEvidence(ontology.Anxiety); !errors.As(err, &nas) {
				t.Errorf("AddEvidence: expected NoActiveSessionError, got %v", err)
			}
			if _, err := s.AddRiskFactor(ontology.RepeatedStressExposure); !errors.As(err, &nas) {
				t.Errorf("AddRiskFactor: expected NoActiveSessionError, got %v", err)
			}
			if _, err := s.AddDerivedState(ontology.AnxietyRisk); !errors.As(err, &nas) {
				t.Errorf("AddDerivedState: expected NoActiveSessionError, got %v", err)
			}
			if err := s.Export(filepath.Join(t.TempDir(), "x.jsonl")); !errors.As(err, &nas) {
				t.Errorf("Export: expected NoActiveSessionError, got %v", err)
			}
		})
	}
}

// #endregion test-create

// #region test-evidence
func TestAddEvidenceAssignsMonotonicIDs(t *testing.T) {
	s := newTestSession(t)
	var ids []string
	for _, l := range []ontology.Label{ontology.Anxiety, ontology.Insomnia, ontology.Academic} {
		id, err := s.AddEvidence(l)
		if err != nil {
			t.Fatalf("add %s: %v", l, err)
		}
		ids = append(ids, id)
	}
	if diff := cmp.Diff([]string{"ev_0", "ev_1", "ev_2"}, ids); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
	types := s.EvidenceTypes()
	if !types[ontology.Anxiety] || !types[ontology.Insomnia] || !types[ontology.Academic] {
		t.Errorf("unexpected evidence types: %v", types)
	}
}

func TestAddEvidenceRejectsNonEvidenceLabels(t *testing.T) {
	s := newTestSession(t)
	var ile *ontology.InvalidLabelError
	for _, l := range []ontology.Label{ontology.PanicRisk, ontology.RepeatedStressExposure, "Joy"} {
		if _, err := s.AddEvidence(l); !errors.As(err, &ile) {
			t.Errorf("%s: expected InvalidLabelError, got %v", l, err)
		}
	}
	if len(s.Evidence()) != 0 {
		t.Error("rejected labels must not be recorded")
	}
}

func TestLabelSettersValidateEnumerations(t *testing.T) {
	s := newTestSession(t)
	id, _ := s.AddEvidence(ontology.Stress)

	var ile *ontology.InvalidLabelError
	if err := s.SetConfidence(id, "VERY_HIGH"); !errors.As(err, &ile) {
		t.Errorf("expected InvalidLabelError, got %v", err)
	}
	if err := s.SetPersistence(id, "SOMETIMES"); !errors.As(err, &ile) {
		t.Errorf("expected InvalidLabelError, got %v", err)
	}
	if err := s.SetConfidence(id, ontology.ConfidenceHigh); err != nil {
		t.Fatalf("set confidence: %v", err)
	}
	if err := s.SetConfidence(id, ontology.ConfidenceLow); err == nil {
		t.Error("second confidence label must be rejected")
	}
	if err := s.SetPersistence(id, ontology.PersistenceRecurring); err != nil {
		t.Fatalf("set persistence: %v", err)
	}

	item := s.Evidence()[0]
	if item.Confidence != ontology.ConfidenceHigh || item.Persistence != ontology.PersistenceRecurring {
		t.Errorf("unexpected labels: %+v", item)
	}
}

func TestDerivedFactsAreSetLike(t *testing.T) {
	s := newTestSession(t)
	added, err := s.AddDerivedState(ontology.AnxietyRisk)
	if err != nil || !added {
		t.Fatalf("first add: added=%v err=%v", added, err)
	}
	added, _ = s.AddDerivedState(ontology.AnxietyRisk)
	if added {
		t.Error("duplicate state must not be added twice")
	}
	if _, err := s.AddDerivedState(ontology.Anxiety); err == nil {
		t.Error("emotion label must not be accepted as state")
	}
	if _, err := s.AddRiskFactor(ontology.AnxietyRisk); err == nil {
		t.Error("state label must not be accepted as risk factor")
	}
	if diff := cmp.Diff([]ontology.Label{ontology.AnxietyRisk}, s.States()); diff != "" {
		t.Errorf("states mismatch (-want +got):\n%s", diff)
	}
}

func TestTurnsLinkEvidenceAndAuditRefs(t *testing.T) {
	s := newTestSession(t)
	turn, err := s.BeginTurn()
	if err != nil {
		t.Fatalf("begin turn: %v", err)
	}
	id, _ := s.AddEvidence(ontology.Panic)
	if got := s.Evidence()[0].Turn; got != turn {
		t.Errorf("evidence %s turn = %q, want %q", id, got, turn)
	}
	if err := s.RecordAuditRef("turn_9", "abc"); err == nil {
		t.Error("unknown turn must be rejected")
	}
	if err := s.RecordAuditRef(turn, "abc123"); err != nil {
		t.Fatalf("record audit ref: %v", err)
	}
	if got := s.LastAuditRef(); got != "abc123" {
		t.Errorf("last audit ref = %q", got)
	}
}

// #endregion test-evidence

// #region test-export
func TestExportIsIdempotentAndReloadable(t *testing.T) {
	s := newTestSession(t)
	s.BeginTurn()
	s.AddEvidence(ontology.Anxiety)
	s.AddEvidence(ontology.Insomnia)
	s.AddDerivedState(ontology.AnxietyRisk)
	s.AddDerivation(ontology.AnxietyRisk, "R_ANX_physio")

	path := filepath.Join(t.TempDir(), "s1.graph.jsonl")
	if err := s.Export(path); err != nil {
		t.Fatalf("export: %v", err)
	}
	first, _ := os.ReadFile(path)
	if err := s.Export(path); err != nil {
		t.Fatalf("second export: %v", err)
	}
	second, _ := os.ReadFile(path)
	if !bytes.Equal(first, second) {
		t.Fatal("repeated export of unmodified graph must be byte-identical")
	}

	loaded, err := LoadSession(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID() != "s1" || loaded.SubjectID() != "student-1" {
		t.Errorf("linkage lost: id=%q subject=%q", loaded.ID(), loaded.SubjectID())
	}
	if !loaded.CreatedAt().Equal(fixedTime) {
		t.Errorf("created at = %v", loaded.CreatedAt())
	}
	if diff := cmp.Diff(s.Facts(), loaded.Facts()); diff != "" {
		t.Errorf("facts mismatch (-want +got):\n%s", diff)
	}
	reencoded, _ := loaded.Encode()
	if !bytes.Equal(first, reencoded) {
		t.Error("reloaded graph must re-encode to identical bytes")
	}
	if diff := cmp.Diff([]string{"R_ANX_physio"}, loaded.Derivations(ontology.AnxietyRisk)); diff != "" {
		t.Errorf("derivations mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadedSessionContinuesAdditively(t *testing.T) {
	s := newTestSession(t)
	s.AddEvidence(ontology.Stress)
	path := filepath.Join(t.TempDir(), "s1.graph.jsonl")
	if err := s.Export(path); err != nil {
		t.Fatalf("export: %v", err)
	}
	before := s.Facts()

	loaded, err := LoadSession(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	id, err := loaded.AddEvidence(ontology.Work)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id != "ev_1" {
		t.Errorf("evidence id after reload = %q, want ev_1", id)
	}
	if turn, _ := loaded.BeginTurn(); turn != "turn_1" {
		t.Errorf("turn after reload = %q", turn)
	}
	if err := loaded.Export(path); err != nil {
		t.Fatalf("re-export: %v", err)
	}
	for _, f := range before {
		if !loaded.Has(f) {
			t.Errorf("fact lost after reload: %+v", f)
		}
	}
}

func TestExportRefusesToRewriteDurableFacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s1.graph.jsonl")
	if err := os.WriteFile(path, []byte(`{"s":"x","p":"y","o":"z"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := newTestSession(t)
	err := s.Export(path)
	var efe *ExportFailureError
	if !errors.As(err, &efe) {
		t.Fatalf("expected ExportFailureError, got %v", err)
	}
	if !errors.Is(err, errNotAppendOnly) {
		t.Errorf("expected errNotAppendOnly cause, got %v", err)
	}
}

func TestLoadSessionCorrupt(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no markers", `{"s":"session:s1","p":"hasEvidence","o":"ev_0"}` + "\n"},
		{"missing subject", `{"s":"session:s1","p":"rdf:type","o":"Session"}` + "\n" +
			`{"s":"session:s1","p":"sessionId","o":"s1"}` + "\n" +
			`{"s":"session:s1","p":"timestamp","o":"2026-03-01T09:30:00Z"}` + "\n"},
		{"garbage", "not json\n"},
		{"duplicate", `{"s":"a","p":"b","o":"c"}` + "\n" + `{"s":"a","p":"b","o":"c"}` + "\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.jsonl")
			if err := os.WriteFile(path, []byte(tc.data), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadSession(path)
			var cse *CorruptSessionError
			if !errors.As(err, &cse) {
				t.Fatalf("expected CorruptSessionError, got %v", err)
			}
		})
	}
}

// #endregion test-export
