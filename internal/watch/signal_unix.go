//go:build !windows

package watch

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// registerSignalHandler triggers a regeneration on SIGHUP until ctx ends.
func (w *Watcher) registerSignalHandler(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sigCh)
		for {
			select {
			case <-sigCh:
				w.logger.Info("SIGHUP received, regenerating")
				w.Trigger()
			case <-ctx.Done():
				return
			}
		}
	}()
}
