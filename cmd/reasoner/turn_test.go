package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/session-reasoner/internal/evidence"
)

func TestParseSignals(t *testing.T) {
	got, err := parseSignals([]string{"emotion:Panic", "symptom:RapidHeartRate:high"})
	if err != nil {
		t.Fatalf("parseSignals: %v", err)
	}
	want := []evidence.Signal{
		{Category: "emotion", Label: "Panic"},
		{Category: "symptom", Label: "RapidHeartRate", Confidence: "HIGH"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	for _, bad := range []string{"Panic", "emotion:", ":Panic", "a:b:c:d"} {
		if _, err := parseSignals([]string{bad}); err == nil {
			t.Errorf("parseSignals(%q): expected error", bad)
		}
	}
}

func TestReadRequests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reqs.jsonl")
	data := `{"session_id":"s1","subject_id":"u1","signals":[{"label":"Stress","category":"emotion"}]}

{"session_id":"s2","subject_id":"u2","signals":[]}
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	reqs, err := readRequests(path)
	if err != nil {
		t.Fatalf("readRequests: %v", err)
	}
	if len(reqs) != 2 || reqs[0].SessionID != "s1" || reqs[0].Signals[0].Label != "Stress" || reqs[1].SubjectID != "u2" {
		t.Errorf("reqs = %+v", reqs)
	}

	if err := os.WriteFile(path, []byte("{not json}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := readRequests(path); err == nil {
		t.Error("expected parse error")
	}
}
