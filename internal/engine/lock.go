package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

const (
	lockRetry      = 20 * time.Millisecond
	lockStaleAfter = 5 * time.Minute
)

// #region lock-registry
// lockRegistry serializes turns per session: an in-process mutex per graph
// path, then an exclusive lock file for other processes sharing the dir.
// An entry lives only while some turn holds or waits for it.
type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int // guarded by lockRegistry.mu
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{locks: make(map[string]*sessionLock)}
}

func (r *lockRegistry) acquire(path string) *sessionLock {
	r.mu.Lock()
	l, ok := r.locks[path]
	if !ok {
		l = &sessionLock{}
		r.locks[path] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return l
}

func (r *lockRegistry) release(path string, l *sessionLock) {
	l.mu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(r.locks, path)
	}
}

// with runs fn while holding the session lock for path. The lock is released
// on every exit path.
func (r *lockRegistry) with(ctx context.Context, path string, fn func() error) error {
	l := r.acquire(path)
	defer r.release(path, l)

	lockPath := path + ".lock"
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
			_ = f.Close()
			defer func() { _ = os.Remove(lockPath) }()
			return fn()
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("acquire session lock: %w", err)
		}
		if stale(lockPath) {
			_ = os.Remove(lockPath)
			continue
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("acquire session lock %s: %w", lockPath, ctx.Err())
		case <-time.After(lockRetry):
		}
	}
}

func stale(lockPath string) bool {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) > lockStaleAfter
}

// #endregion lock-registry
