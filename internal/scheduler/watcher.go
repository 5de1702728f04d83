package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docpipe/pkg/logger"
	"github.com/fsnotify/fsnotify"
)

// Watcher watches the input directory and calls notify once a burst of
// changes to matching files has settled.
type Watcher struct {
	dir      string
	suffix   string
	debounce time.Duration
	notify   func()
	logger   *slog.Logger
}

// NewWatcher creates a Watcher for files in dir ending in "."+ext.
func NewWatcher(dir, ext string, debounce time.Duration, notify func()) *Watcher {
	return &Watcher{
		dir:      dir,
		suffix:   "." + ext,
		debounce: debounce,
		notify:   notify,
		logger:   logger.WithComponent("watcher").With("dir", dir),
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Info("watching input directory")

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("input changed", "file", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		case <-timer.C:
			w.notify()
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, w.suffix) {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0
}
