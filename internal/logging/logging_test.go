package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Levels(t *testing.T) {
	cases := []struct {
		level, format string
		verbose       bool
		want          zapcore.Level
	}{
		{"", "", false, zapcore.InfoLevel},
		{"warn", "json", false, zapcore.WarnLevel},
		{"error", "console", false, zapcore.ErrorLevel},
		{"error", "json", true, zapcore.DebugLevel},
	}
	for _, tc := range cases {
		l, err := New(tc.level, tc.format, tc.verbose)
		if err != nil {
			t.Fatalf("New(%q, %q): %v", tc.level, tc.format, err)
		}
		if !l.Core().Enabled(tc.want) {
			t.Errorf("New(%q, %q, %v): level %s not enabled", tc.level, tc.format, tc.verbose, tc.want)
		}
		if tc.want > zapcore.DebugLevel && l.Core().Enabled(tc.want-1) {
			t.Errorf("New(%q, %q, %v): level below %s enabled", tc.level, tc.format, tc.verbose, tc.want)
		}
	}
}

func TestNew_Rejects(t *testing.T) {
	if _, err := New("loud", "json", false); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New("info", "xml", false); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestSession_AddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Session(zap.New(core), "s1", "student-1").Info("turn complete")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["session_id"] != "s1" || fields["subject_id"] != "student-1" {
		t.Errorf("fields = %v", fields)
	}
}
