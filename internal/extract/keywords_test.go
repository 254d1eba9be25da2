package extract

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/danielpatrickdp/session-reasoner/internal/evidence"
)

func labels(sigs []evidence.Signal) []string {
	out := make([]string, len(sigs))
	for i, s := range sigs {
		out[i] = s.Label
	}
	return out
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		text      string
		want      []string
		intensity string
	}{
		{"I feel so anxious today", []string{"Anxiety"}, "high"},
		{"I can't sleep and feel restless", []string{"Anxiety", "Insomnia", "Restlessness"}, "medium"},
		{"Finals are killing me", []string{"Stress", "Academic"}, "high"},
		{"Heart racing, can't breathe", []string{"Panic", "RapidHeartRate", "BreathingDifficulty"}, "medium"},
		{"I'm not depressed, just tired", []string{"Fatigue"}, "medium"},
		{"slightly worried about money", []string{"Anxiety", "Financial"}, "low"},
		{"the weather is fine", nil, "medium"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := ExtractText(tt.text)
			if diff := cmp.Diff(tt.want, labels(res.Signals), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("labels (-want +got):\n%s", diff)
			}
			if res.Intensity != tt.intensity {
				t.Errorf("intensity = %q, want %q", res.Intensity, tt.intensity)
			}
		})
	}
}

func TestExtractText_SignalShape(t *testing.T) {
	res := ExtractText("Very stressed about my EXAMS")
	want := []evidence.Signal{
		{Label: "Stress", Category: "emotion", SurfaceText: "stress", Confidence: "HIGH"},
		{Label: "Academic", Category: "trigger", SurfaceText: "academic", Confidence: "HIGH"},
	}
	if diff := cmp.Diff(want, res.Signals); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestExtractText_Negation(t *testing.T) {
	for _, text := range []string{"not anxious", "I don't feel anxious", "no longer anxious", "never anxious"} {
		if res := ExtractText(text); len(res.Signals) != 0 {
			t.Errorf("%q: got %v, want none", text, labels(res.Signals))
		}
	}
	// A negated mention does not cancel an unnegated one.
	res := ExtractText("not anxious at night but anxious all day")
	if diff := cmp.Diff([]string{"Anxiety"}, labels(res.Signals)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestExtractText_WordBoundaries(t *testing.T) {
	// "sad" inside "saddle" and "mad" inside "made" must not match.
	if res := ExtractText("I made a saddle"); len(res.Signals) != 0 {
		t.Errorf("got %v, want none", labels(res.Signals))
	}
	// Curly apostrophes fold to ASCII.
	if res := ExtractText("I can’t focus"); len(res.Signals) != 1 || res.Signals[0].Label != "ConcentrationDifficulty" {
		t.Errorf("got %v", labels(res.Signals))
	}
}

func TestKeywordsImplementsExtractor(t *testing.T) {
	var ex Extractor = Keywords{}
	res, err := ex.Extract(context.Background(), "lonely and exhausted")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"Fatigue", "Social"}, labels(res.Signals)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
