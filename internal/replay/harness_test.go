package replay

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/session-reasoner/internal/engine"
	"github.com/danielpatrickdp/session-reasoner/internal/evidence"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
	"github.com/danielpatrickdp/session-reasoner/internal/store"
)

// #region fixture-tests

// TestFixture_EscalationPath is the regression baseline: a rule or ranking
// change that alters any turn's outcome shows up as a diff here.
func TestFixture_EscalationPath(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "escalation_path.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	results, err := Replay(context.Background(), f, t.TempDir())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != len(f.Turns) {
		t.Fatalf("expected %d results, got %d", len(f.Turns), len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Errorf("turn %d (%s): %v", r.Index, r.SessionID, r.Err)
			continue
		}
		if r.Diff != "" {
			t.Errorf("turn %d (%s %s) mismatch (-want +got):\n%s", r.Index, r.SessionID, r.Turn, r.Diff)
		}
	}

	s := Summarize(results)
	if s.Matched != 4 || s.Diverged != 0 || s.Errors != 0 {
		t.Errorf("summary = %+v", s)
	}
	if s.Escalations[ontology.EscalationCritical] != 2 || s.Escalations[ontology.EscalationNone] != 2 {
		t.Errorf("escalations = %v", s.Escalations)
	}
}

func TestReplay_ReportsDivergence(t *testing.T) {
	f := &Fixture{Turns: []FixtureTurn{{
		SessionID: "s1",
		SubjectID: "student-1",
		Signals:   []evidence.Signal{{Label: "Anxiety", Category: "emotion"}, {Label: "Insomnia", Category: "symptom"}},
		Expected: Expected{
			DerivedStates:   []ontology.Label{ontology.SleepDisturbance},
			EscalationLevel: ontology.EscalationNone,
		},
	}}}

	results, err := Replay(context.Background(), f, t.TempDir())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if results[0].Match() {
		t.Fatal("expected divergence")
	}
	if s := Summarize(results); s.Diverged != 1 {
		t.Errorf("expected 1 diverged, got %+v", s)
	}
}

func TestReplay_TurnErrorDoesNotStopRun(t *testing.T) {
	f := &Fixture{Turns: []FixtureTurn{
		{SessionID: "../bad", SubjectID: "student-1"},
		{SessionID: "s1", SubjectID: "student-1", Expected: Expected{EscalationLevel: ontology.EscalationNone}},
	}}
	results, err := Replay(context.Background(), f, t.TempDir())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if results[0].Err == nil {
		t.Error("expected error for invalid session id")
	}
	if !results[1].Match() {
		t.Errorf("second turn: err=%v diff=%s", results[1].Err, results[1].Diff)
	}
	if s := Summarize(results); s.Errors != 1 || s.Matched != 1 {
		t.Errorf("summary = %+v", s)
	}
}

// #endregion fixture-tests

// #region export-tests

// TestFromRecords_ReproducesAuditRefs exports a recorded subject history and
// replays it into an empty directory; every audit ref must come out the same.
func TestFromRecords_ReproducesAuditRefs(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewStore(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	clock := func() time.Time { return time.Date(2026, 4, 1, 8, 30, 0, 0, time.UTC) }
	e, err := engine.New(t.TempDir(), engine.WithStore(st), engine.WithClock(clock))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	turns := []struct {
		session string
		signals []evidence.Signal
	}{
		{"s1", []evidence.Signal{{Label: "Stress", Category: "emotion"}}},
		{"s2", []evidence.Signal{{Label: "Panic", Category: "emotion"}, {Label: "BreathingDifficulty", Category: "symptom"}}},
		{"s2", []evidence.Signal{{Label: "Sadness", Category: "emotion"}, {Label: "Fatigue", Category: "symptom"}}},
	}
	for _, tc := range turns {
		if _, err := e.Reason(ctx, tc.session, "student-9", tc.signals); err != nil {
			t.Fatalf("Reason %s: %v", tc.session, err)
		}
	}

	recs, err := st.SubjectRecords(ctx, "student-9")
	if err != nil {
		t.Fatalf("SubjectRecords: %v", err)
	}
	f, err := FromRecords("exported", recs)
	if err != nil {
		t.Fatalf("FromRecords: %v", err)
	}
	if len(f.Turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(f.Turns))
	}

	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := WriteFixture(path, f); err != nil {
		t.Fatalf("WriteFixture: %v", err)
	}
	loaded, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}

	results, err := Replay(ctx, loaded, t.TempDir())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	for _, r := range results {
		if !r.Match() {
			t.Errorf("turn %d (%s): err=%v diff=\n%s", r.Index, r.SessionID, r.Err, r.Diff)
		}
	}
	if results[2].Got.EscalationLevel != ontology.EscalationCritical {
		t.Errorf("expected CRITICAL on last turn, got %s", results[2].Got.EscalationLevel)
	}
}

func TestLoadFixture_RequiresIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := WriteFixture(path, &Fixture{Turns: []FixtureTurn{{SubjectID: "u"}}}); err != nil {
		t.Fatalf("WriteFixture: %v", err)
	}
	if _, err := LoadFixture(path); err == nil {
		t.Fatal("expected error for missing session_id")
	}
}

// #endregion export-tests
