// Package watch reruns analysis when PHP sources change.
package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/panbanda/cohere/pkg/config"
	"github.com/panbanda/cohere/pkg/parser"
)

// DefaultDebounce is used when no debounce period is configured.
const DefaultDebounce = 500 * time.Millisecond

// Change is one file that changed during a debounce window.
type Change struct {
	Path    string
	Removed bool
}

type pendingChange struct {
	at      time.Time
	removed bool
}

// Watcher monitors a directory tree and reports batches of changed PHP
// files once they have been quiet for the debounce period. Batches are
// delivered one at a time, so a callback never overlaps with itself.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	debounce  time.Duration
	path      string
	callback  func(changes []Change)
	logger    *slog.Logger
	mu        sync.Mutex
	pending   map[string]pendingChange
}

// NewWatcher creates a new file watcher.
func NewWatcher(path string, cfg *config.Config, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		debounce:  debounce,
		path:      path,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		pending:   make(map[string]pendingChange),
	}, nil
}

// SetCallback sets the function to call with each batch of changes.
func (w *Watcher) SetCallback(cb func(changes []Change)) {
	w.callback = cb
}

// SetLogger sets the logger for watch errors.
func (w *Watcher) SetLogger(logger *slog.Logger) {
	if logger != nil {
		w.logger = logger
	}
}

// Start watches until ctx is cancelled or the watcher is stopped.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.path); err != nil {
		return err
	}

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// addTree registers root and every non-excluded directory below it.
func (w *Watcher) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && w.excludedDir(info.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *Watcher) excludedDir(name string) bool {
	for _, excluded := range w.config.Exclude.Dirs {
		if name == excluded {
			return true
		}
	}
	return false
}

// handleEvent processes a filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	// New directories are watched as they appear.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if !w.excludedDir(info.Name()) {
				if err := w.addTree(path); err != nil {
					w.logger.Warn("watch directory", "path", path, "error", err)
				}
			}
			return
		}
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if w.config.ShouldExclude(path) {
		return
	}
	if parser.DetectLanguage(path) == parser.LangUnknown {
		return
	}

	removed := event.Op&(fsnotify.Remove|fsnotify.Rename) != 0

	w.mu.Lock()
	w.pending[path] = pendingChange{at: time.Now(), removed: removed}
	w.mu.Unlock()
}

// processDebounced processes pending changes after debounce period.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if batch := w.takeReady(time.Now()); len(batch) > 0 && w.callback != nil {
				w.callback(batch)
			}
		}
	}
}

// takeReady removes and returns every change that has been quiet for the
// debounce period, sorted by path. Nothing is returned while any change is
// still settling, so one burst of saves becomes one batch.
func (w *Watcher) takeReady(now time.Time) []Change {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return nil
	}
	for _, p := range w.pending {
		if now.Sub(p.at) < w.debounce {
			return nil
		}
	}

	batch := make([]Change, 0, len(w.pending))
	for path, p := range w.pending {
		batch = append(batch, Change{Path: path, Removed: p.removed})
	}
	w.pending = make(map[string]pendingChange)

	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	return batch
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the directories being watched.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}
