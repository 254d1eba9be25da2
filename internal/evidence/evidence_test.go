package evidence

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danielpatrickdp/session-reasoner/internal/graph"
	"github.com/danielpatrickdp/session-reasoner/internal/ontology"
)

func newSession(t *testing.T) *graph.Session {
	t.Helper()
	s, err := graph.CreateSession("student-1", "s1")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return s
}

func TestValidate(t *testing.T) {
	cases := []struct {
		sig     Signal
		want    ontology.Label
		wantErr bool
	}{
		{Signal{Label: "Anxiety", Category: "emotion"}, ontology.Anxiety, false},
		{Signal{Label: "Insomnia", Category: "symptom", Confidence: "HIGH"}, ontology.Insomnia, false},
		{Signal{Label: "Academic", Category: "trigger"}, ontology.Academic, false},
		{Signal{Label: "Anxiety", Category: "symptom"}, "", true},
		{Signal{Label: "PanicRisk", Category: "state"}, "", true},
		{Signal{Label: "Joy", Category: "emotion"}, "", true},
		{Signal{Label: "Stress", Category: "emotion", Confidence: "0.9"}, "", true},
	}
	for _, tc := range cases {
		got, _, err := Validate(tc.sig)
		if tc.wantErr {
			var ile *ontology.InvalidLabelError
			if !errors.As(err, &ile) {
				t.Errorf("%+v: expected InvalidLabelError, got %v", tc.sig, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("%+v: got %q, %v", tc.sig, got, err)
		}
	}
}

func TestIntakeRejectsOnlyOffendingSignal(t *testing.T) {
	s := newSession(t)
	res, err := Intake(s, []Signal{
		{Label: "Anxiety", Category: "emotion"},
		{Label: "Unicorn", Category: "emotion"},
		{Label: "Insomnia", Category: "symptom", Confidence: "MEDIUM"},
		{Label: "Anxiety", Category: "emotion"},
	})
	if err != nil {
		t.Fatalf("intake: %v", err)
	}
	if len(res.Accepted) != 2 || len(res.Rejected) != 1 || res.Duplicates != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Rejected[0].Signal.Label != "Unicorn" {
		t.Errorf("wrong signal rejected: %+v", res.Rejected[0])
	}
	items := s.Evidence()
	if items[1].Confidence != ontology.ConfidenceMedium {
		t.Errorf("confidence not stored: %+v", items[1])
	}
}

func TestIntakeMarksRecurringAcrossTurns(t *testing.T) {
	s := newSession(t)
	s.BeginTurn()
	if _, err := Intake(s, []Signal{{Label: "Stress", Category: "emotion"}}); err != nil {
		t.Fatal(err)
	}
	s.BeginTurn()
	res, err := Intake(s, []Signal{
		{Label: "Stress", Category: "emotion"},
		{Label: "Work", Category: "trigger"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []Accepted{
		{EvidenceID: "ev_1", Label: ontology.Stress, Persistence: ontology.PersistenceRecurring},
		{EvidenceID: "ev_2", Label: ontology.Work, Persistence: ontology.PersistenceTransient},
	}
	if diff := cmp.Diff(want, res.Accepted); diff != "" {
		t.Errorf("accepted mismatch (-want +got):\n%s", diff)
	}
}

func TestIntakeWithoutSession(t *testing.T) {
	var s *graph.Session
	_, err := Intake(s, []Signal{{Label: "Stress", Category: "emotion"}})
	var nas *graph.NoActiveSessionError
	if !errors.As(err, &nas) {
		t.Fatalf("expected NoActiveSessionError, got %v", err)
	}
}

func TestCategorizeDeduplicatesInFirstOccurrenceOrder(t *testing.T) {
	s := newSession(t)
	for _, l := range []ontology.Label{ontology.Stress, ontology.Insomnia, ontology.Anxiety, ontology.Stress, ontology.Academic} {
		if _, err := s.AddEvidence(l); err != nil {
			t.Fatal(err)
		}
	}
	s.AddRiskFactor(ontology.RepeatedStressExposure)

	c := Categorize(s)
	want := Categories{
		Emotions:    []ontology.Label{ontology.Stress, ontology.Anxiety},
		Symptoms:    []ontology.Label{ontology.Insomnia},
		Triggers:    []ontology.Label{ontology.Academic},
		RiskFactors: []ontology.Label{ontology.RepeatedStressExposure},
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
	if c.Total() != 5 || c.NonEmpty() != 4 {
		t.Errorf("total=%d nonEmpty=%d", c.Total(), c.NonEmpty())
	}
	if items := c.Items(); items[0] != (Item{Type: "Emotion", Value: "Stress"}) || items[len(items)-1].Type != "Risk Factor" {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestCategorizeEmptySession(t *testing.T) {
	c := Categorize(newSession(t))
	if c.Total() != 0 || c.NonEmpty() != 0 || len(c.Items()) != 0 {
		t.Errorf("expected empty categories, got %+v", c)
	}
}
