// Package watch regenerates the environment file whenever one of its inputs
// (the .env file or the settings file) changes, or on SIGHUP.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dskow/fixturegen/internal/apperror"
	"github.com/dskow/fixturegen/internal/config"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// Watcher watches a set of files and calls a regenerate function after they
// change. Calls are serialized on the Run goroutine, debounced, and spaced
// at least MinInterval apart.
type Watcher struct {
	files    map[string]bool
	dirs     []string
	regen    func() error
	logger   *slog.Logger
	debounce time.Duration
	limiter  *rate.Limiter
	trigger  chan struct{}
	ready    chan struct{}
}

// New creates a Watcher for paths. Parent directories are watched rather
// than the files themselves, so files replaced by rename (as most editors
// save) and files created after start are still seen.
func New(paths []string, cfg config.WatchConfig, regen func() error, logger *slog.Logger) *Watcher {
	w := &Watcher{
		files:    make(map[string]bool, len(paths)),
		regen:    regen,
		logger:   logger,
		debounce: cfg.Debounce,
		limiter:  rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		trigger:  make(chan struct{}, 1),
		ready:    make(chan struct{}),
	}
	seen := make(map[string]bool)
	for _, p := range paths {
		abs := absPath(p)
		w.files[abs] = true
		if dir := filepath.Dir(abs); !seen[dir] {
			seen[dir] = true
			w.dirs = append(w.dirs, dir)
		}
	}
	return w
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Ready is closed once the file watches are in place.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Trigger requests a regeneration. Requests made while one is pending are
// coalesced.
func (w *Watcher) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// Run watches until ctx is cancelled. It returns an error only if the
// watches cannot be set up.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()

	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.logger.Info("watching directory", "path", dir)
	}

	w.registerSignalHandler(ctx)
	close(w.ready)

	// Editors often emit several events per save.
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.files[absPath(event.Name)] || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Debug("input changed", "path", event.Name, "op", event.Op.String())
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(w.debounce, w.Trigger)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", "error", err)
		case <-w.trigger:
			if err := w.limiter.Wait(ctx); err != nil {
				return nil
			}
			w.regenerate()
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) regenerate() {
	w.logger.Info("regenerating environment")
	if err := w.regen(); err != nil {
		w.logger.Error("regeneration failed, keeping previous environment",
			"code", apperror.CodeOf(err), "error", err)
	}
}
