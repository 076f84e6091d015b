package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports changes to config and side files. Rapid saves of the same
// files are collapsed into one callback after the debounce interval.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]struct{}
	debounce time.Duration
	onChange func()
	log      *zap.Logger
	pending  bool
}

// NewWatcher watches the given file paths. Directories that don't exist are
// skipped; a file created later in a watched directory is still reported.
func NewWatcher(paths []string, onChange func(), log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]struct{}, len(paths)),
		debounce: 300 * time.Millisecond,
		onChange: onChange,
		log:      log,
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := fw.Add(dir); err != nil {
			log.Warn("config watch failed", zap.String("dir", dir), zap.Error(err))
		}
	}

	return w, nil
}

// WatchPaths returns the config file plus every side-file search path.
func WatchPaths(configPath string) []string {
	paths := []string{configPath}
	paths = append(paths, SearchPaths(PricingFileName)...)
	paths = append(paths, SearchPaths(BudgetFileName)...)
	return paths
}

// Run delivers change callbacks until ctx is canceled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) {
	defer func() { _ = w.watcher.Close() }()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if !w.pending {
				w.pending = true
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", zap.Error(err))
		case <-timer.C:
			w.pending = false
			w.log.Debug("config files changed, reloading")
			w.onChange()
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}
