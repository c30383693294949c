// watch.go caches a work dir's tree and recomputes it only after the
// filesystem reports a change.
package tree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/berth-dev/slipway/internal/execute"
)

// pollInterval bounds how stale a snapshot may get when fsnotify is not
// available.
const pollInterval = 2 * time.Second

// Watcher keeps a TreeSnapshot of one directory up to date.
type Watcher struct {
	dir    string
	opts   Options
	m      *Matcher
	logger *zap.Logger

	fsw       *fsnotify.Watcher
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error

	mu       sync.Mutex
	dirty    bool
	computed time.Time
	snap     execute.TreeSnapshot
}

// NewWatcher starts watching dir. If fsnotify cannot be set up the watcher
// falls back to recomputing at most every pollInterval.
func NewWatcher(dir string, opts Options, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		dir:    dir,
		opts:   opts,
		m:      LoadMatcher(dir),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		dirty:  true,
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Debug("fsnotify unavailable, polling work dir", zap.Error(err))
		return w, nil
	}
	w.fsw = fsw
	w.addTree(dir)

	w.wg.Add(1)
	go w.eventLoop()
	return w, nil
}

// Source returns an execute.TreeSource that opens a Watcher per work dir.
func Source(opts Options, logger *zap.Logger) execute.TreeSource {
	return func(dir string) (execute.TreeView, error) {
		return NewWatcher(dir, opts, logger)
	}
}

// Snapshot returns the current tree, recomputing it if anything changed
// since the last call.
func (w *Watcher) Snapshot() execute.TreeSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	stale := w.dirty
	if w.fsw == nil && time.Since(w.computed) >= pollInterval {
		stale = true
	}
	if !stale {
		return w.snap
	}

	// Clear first so changes made while rendering mark it dirty again.
	w.dirty = false
	files, dirs := Count(w.dir, w.m)
	w.snap = execute.TreeSnapshot{
		Tree:  Render(w.dir, w.opts, w.m),
		Files: files,
		Dirs:  dirs,
	}
	w.computed = time.Now()
	return w.snap
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.cancel()
		w.wg.Wait()
		if w.fsw != nil {
			w.closeErr = w.fsw.Close()
		}
	})
	return w.closeErr
}

func (w *Watcher) markDirty() {
	w.mu.Lock()
	w.dirty = true
	w.mu.Unlock()
}

// addTree watches root and every visible directory below it.
func (w *Watcher) addTree(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(w.dir, path); relErr == nil && rel != "." && w.m.Ignored(rel, true) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Debug("watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			// Overflow means events were lost; treat everything as changed.
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.markDirty()
			}
			w.logger.Debug("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	if rel, err := filepath.Rel(w.dir, event.Name); err == nil && w.m.Ignored(rel, false) {
		return
	}
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addTree(event.Name)
		}
	}
	w.markDirty()
}
