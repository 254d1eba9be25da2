package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsAndKeepsLastGoodTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, defaultRules, 0o644))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	initial := w.Current()
	require.Len(t, initial.Rules, 11)

	trimmed := []byte(`rules:
  - id: R_PAN_acute
    all:
      - {kind: emotion, any_of: [Panic]}
      - {kind: symptom, any_of: [RapidHeartRate]}
    then: {kind: state, label: PanicRisk}
`)
	require.NoError(t, os.WriteFile(path, trimmed, 0o644))
	require.Eventually(t, func() bool {
		return len(w.Current().Rules) == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.EqualValues(t, 1, w.Reloads())

	reloaded := w.Current()
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - id: broken\n    then: {kind: state, label: Nope}\n"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Same(t, reloaded, w.Current(), "invalid file must not replace the active table")
}

func TestNewWatcherRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: []\n"), 0o644))
	_, err := NewWatcher(path, nil)
	var rce *RuleConfigurationError
	require.ErrorAs(t, err, &rce)
}
