package rules

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// #region watcher

// Watcher keeps a rule table in sync with a YAML file. A changed file is
// recompiled and swapped in; a file that fails validation is logged and the
// previous table stays active.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	current  atomic.Pointer[Table]
	logger   *zap.Logger
	debounce time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	reloads atomic.Int64
}

// NewWatcher compiles path and prepares a watcher for it. A table that does
// not compile is a startup error.
func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	initial, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("rule watcher: %w", err)
	}
	w := &Watcher{
		path:     filepath.Clean(path),
		watcher:  fw,
		logger:   logger,
		debounce: 200 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	w.current.Store(initial)
	return w, nil
}

// Current returns the active table.
func (w *Watcher) Current() *Table {
	return w.current.Load()
}

// Reloads returns how many reloads succeeded.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// Start watches the rule file's directory (editors often replace files by
// rename). Non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	w.running = true
	go w.run(ctx)
	w.logger.Info("watching rule table", zap.String("path", w.path), zap.String("digest", w.Current().Digest))
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		_ = w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	_ = w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				pending = time.After(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("rule watcher error", zap.Error(err))
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	next, err := LoadFile(w.path)
	if err != nil {
		w.logger.Warn("rule reload rejected, keeping previous table",
			zap.String("path", w.path),
			zap.String("digest", w.Current().Digest),
			zap.Error(err))
		return
	}
	if next.Digest == w.Current().Digest {
		return
	}
	w.current.Store(next)
	w.reloads.Add(1)
	w.logger.Info("rule table reloaded", zap.String("path", w.path), zap.String("digest", next.Digest))
}

// #endregion watcher
