package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/session-reasoner/internal/graph"
)

// size returns the number of live registry entries.
func (r *lockRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

func TestConcurrentTurnsSameSession(t *testing.T) {
	dir := t.TempDir()
	e := newEngine(t, dir)
	ctx := context.Background()
	const n = 8

	turns := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.Reason(ctx, "s1", "student-1", stressOnly)
			turns[i], errs[i] = res.Turn, err
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		seen[turns[i]] = true
	}
	for i := 1; i <= n; i++ {
		assert.True(t, seen[fmt.Sprintf("turn_%d", i)], "missing turn_%d", i)
	}

	path := filepath.Join(dir, "s1.graph.jsonl")
	s, err := graph.LoadSession(path)
	require.NoError(t, err)
	assert.Len(t, s.Turns(), n)
	assert.Len(t, s.Evidence(), n)

	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err), "lock file left behind")
	assert.Equal(t, 0, e.locks.size())
}

func TestHeldLockFileHonorsContext(t *testing.T) {
	dir := t.TempDir()
	e := newEngine(t, dir)
	path := filepath.Join(dir, "s1.graph.jsonl")
	require.NoError(t, os.WriteFile(path+".lock", []byte("12345\n"), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := e.Reason(ctx, "s1", "student-1", stressOnly)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no graph may be written without the lock")
	_, err = os.Stat(path + ".lock")
	assert.NoError(t, err, "a lock held by someone else must not be removed")
	assert.Equal(t, 0, e.locks.size())
}

func TestHeldLockFileIsAwaited(t *testing.T) {
	dir := t.TempDir()
	e := newEngine(t, dir)
	lockPath := filepath.Join(dir, "s1.graph.jsonl.lock")
	require.NoError(t, os.WriteFile(lockPath, []byte("12345\n"), 0o600))

	released := make(chan struct{})
	go func() {
		defer close(released)
		time.Sleep(60 * time.Millisecond)
		_ = os.Remove(lockPath)
	}()

	res, err := e.Reason(context.Background(), "s1", "student-1", stressOnly)
	<-released
	require.NoError(t, err)
	assert.Equal(t, "turn_1", res.Turn)
	_, err = os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err))
}

func TestStaleLockFileIsRecovered(t *testing.T) {
	dir := t.TempDir()
	e := newEngine(t, dir)
	lockPath := filepath.Join(dir, "s1.graph.jsonl.lock")
	require.NoError(t, os.WriteFile(lockPath, []byte("12345\n"), 0o600))
	old := time.Now().Add(-2 * lockStaleAfter)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := e.Reason(ctx, "s1", "student-1", stressOnly)
	require.NoError(t, err)
	assert.Equal(t, "turn_1", res.Turn)
	_, err = os.Stat(lockPath)
	assert.True(t, os.IsNotExist(err))
}
