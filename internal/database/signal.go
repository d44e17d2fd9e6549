package database

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dbsmedya/waitforgraph/internal/logger"
)

// WithInterrupt returns a context derived from parent that is canceled on
// SIGTERM or SIGINT, so an in-flight snapshot query is abandoned instead of
// holding its session open. The returned cancel function releases the
// signal registration.
func WithInterrupt(parent context.Context, log *logger.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			if log != nil {
				log.Warnw("interrupted, canceling snapshot", "signal", sig.String())
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
