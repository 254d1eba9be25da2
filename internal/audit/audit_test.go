package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/session-reasoner/internal/escalation"
	"github.com/danielpatrickdp/session-reasoner/internal/evidence"
	"github.com/danielpatrickdp/session-reasoner/internal/explain"
	"github.com/danielpatrickdp/session-reasoner/internal/graph"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
	"github.com/danielpatrickdp/session-reasoner/internal/ranking"
	"github.com/danielpatrickdp/session-reasoner/internal/rules"
)

// #region helpers
func buildTurn(t *testing.T, s *graph.Session, signals []evidence.Signal) Record {
	t.Helper()
	table, err := rules.Default()
	if err != nil {
		t.Fatalf("default rules: %v", err)
	}
	turn, err := s.BeginTurn()
	if err != nil {
		t.Fatal(err)
	}
	intake, err := evidence.Intake(s, signals)
	if err != nil {
		t.Fatal(err)
	}
	fx, err := table.Apply(s)
	if err != nil {
		t.Fatal(err)
	}
	findings := escalation.FindingsFrom(s)
	cats := evidence.Categorize(s)
	x := explain.NewExplainer(nil)
	var exps []explain.Explanation
	for _, st := range s.States() {
		exps = append(exps, x.Explain(explain.Input{
			State:      st,
			Categories: cats,
			Rules:      s.Derivations(st),
			Findings:   findings.For(st),
		}))
	}
	rk := ranking.NewRanker().Rank(exps)
	dec := escalation.NewDecider().Decide(findings, rk.AggregatedSafety)

	rec, err := Build(Input{
		Session:      s,
		Turn:         turn,
		Signals:      signals,
		Intake:       intake,
		Fixpoint:     fx,
		Table:        table,
		Explanations: exps,
		Ranking:      rk,
		Escalation:   dec,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := s.RecordAuditRef(turn, rec.RecordHash); err != nil {
		t.Fatal(err)
	}
	return rec
}

func newSession(t *testing.T) *graph.Session {
	t.Helper()
	s, err := graph.CreateSessionAt("student-1", "s1", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

var panicSignals = []evidence.Signal{
	{Label: "Panic", Category: "emotion"},
	{Label: "RapidHeartRate", Category: "symptom"},
}

// #endregion helpers

// #region hash-tests
func TestVerifyAfterBuild(t *testing.T) {
	rec := buildTurn(t, newSession(t), panicSignals)
	if len(rec.RecordHash) != 16 {
		t.Fatalf("hash %q is not 16 hex chars", rec.RecordHash)
	}
	if !Verify(rec) {
		t.Fatal("fresh record does not verify")
	}
	if rec.Timestamp != "2026-03-01T09:00:00Z" || rec.PrevHash != "" {
		t.Errorf("timestamp %q prev %q", rec.Timestamp, rec.PrevHash)
	}
	if !rec.Guarantees.NoDiagnosis || rec.Disclaimer != Disclaimer {
		t.Error("guarantees or disclaimer missing")
	}
}

func TestVerifyDetectsTampering(t *testing.T) {
	rec := buildTurn(t, newSession(t), panicSignals)

	tampered := rec
	tampered.Escalation.Level = ontology.EscalationCritical
	if Verify(tampered) {
		t.Fatal("mutated escalation level still verifies")
	}
	if err := VerifyErr(tampered); !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("expected ErrHashMismatch, got %v", err)
	}

	tampered = rec
	tampered.SubjectID = "someone-else"
	if Verify(tampered) {
		t.Fatal("mutated subject still verifies")
	}
}

func TestHashSurvivesRoundTrip(t *testing.T) {
	rec := buildTurn(t, newSession(t), panicSignals)
	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !Verify(decoded) {
		t.Fatal("decoded record does not verify")
	}
}

func TestRecordsChainWithinSession(t *testing.T) {
	s := newSession(t)
	first := buildTurn(t, s, panicSignals)
	second := buildTurn(t, s, []evidence.Signal{{Label: "Insomnia", Category: "symptom"}})
	if second.PrevHash != first.RecordHash {
		t.Fatalf("prev_hash %q, want %q", second.PrevHash, first.RecordHash)
	}
	if err := VerifyChain("s1", []Record{first, second}); err != nil {
		t.Fatalf("chain: %v", err)
	}
	var ce *ChainError
	if err := VerifyChain("s1", []Record{second}); !errors.As(err, &ce) {
		t.Fatalf("expected ChainError for missing head, got %v", err)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	a := buildTurn(t, newSession(t), panicSignals)
	b := buildTurn(t, newSession(t), panicSignals)
	if a.RecordHash != b.RecordHash {
		t.Fatalf("same input gave hashes %s and %s", a.RecordHash, b.RecordHash)
	}
}

// #endregion hash-tests

// #region log-tests
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE audit_log (
		seq              INTEGER PRIMARY KEY AUTOINCREMENT,
		record_hash      TEXT NOT NULL UNIQUE,
		prev_hash        TEXT,
		session_id       TEXT NOT NULL,
		subject_id       TEXT NOT NULL,
		turn             TEXT NOT NULL,
		escalation_level TEXT NOT NULL,
		record_json      TEXT NOT NULL,
		created_at       TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAppendAndList(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	s := newSession(t)
	first := buildTurn(t, s, panicSignals)
	second := buildTurn(t, s, []evidence.Signal{{Label: "Stress", Category: "emotion"}})

	for _, rec := range []Record{first, second, first} {
		if err := Append(ctx, db, rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM audit_log").Scan(&count)
	if count != 2 {
		t.Errorf("expected 2 rows, got %d", count)
	}

	recs, err := List(ctx, db, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 || recs[0].Turn != "turn_1" || recs[1].Turn != "turn_2" {
		t.Fatalf("unexpected records: %d", len(recs))
	}
	if err := VerifyChain("s1", recs); err != nil {
		t.Errorf("stored chain: %v", err)
	}
}

func TestAppendRequiresHash(t *testing.T) {
	db := setupDB(t)
	if err := Append(context.Background(), db, Record{SessionID: "s1"}); err == nil {
		t.Fatal("expected error for record without hash")
	}
}

// #endregion log-tests
