package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher tracks whether the configured database files exist on disk.
// It only reports presence; open lookup handles are never swapped.
type Watcher struct {
	fsw    *fsnotify.Watcher
	logger *slog.Logger

	mu      sync.RWMutex
	present map[string]bool
}

// NewWatcher starts watching the parent directories of paths.
func NewWatcher(paths []string, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		fsw:     fsw,
		logger:  logger,
		present: make(map[string]bool, len(paths)),
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to resolve %q: %w", p, err)
		}
		w.present[abs] = fileExists(abs)
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			// A missing directory just means the file is missing too.
			logger.Warn("cannot watch database directory", "dir", dir, "error", err)
		}
	}

	return w, nil
}

// Run consumes file system events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("database watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	name := filepath.Clean(event.Name)
	was, tracked := w.present[name]
	if !tracked {
		return
	}

	now := fileExists(name)
	w.present[name] = now

	switch {
	case !was && now:
		w.logger.Info("database file appeared", "path", name)
	case was && !now:
		w.logger.Warn("database file removed", "path", name)
	case now && event.Has(fsnotify.Write):
		w.logger.Info("database file modified; restart to load it", "path", name)
	}
}

// Ready returns an error naming every watched file that is missing.
func (w *Watcher) Ready() error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var missing []string
	for path, ok := range w.present {
		if !ok {
			missing = append(missing, path)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return errors.New("database file missing: " + strings.Join(missing, ", "))
}

// Close stops the underlying file system watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
