//go:build windows

package watch

import "context"

// registerSignalHandler is a no-op on Windows since SIGHUP is not available.
func (w *Watcher) registerSignalHandler(context.Context) {
	w.logger.Info("SIGHUP not available on Windows, using file watcher only")
}
