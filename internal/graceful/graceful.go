package graceful

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
)

func MakeSigintChan() chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}

// Context returns a child of parent that is cancelled on SIGINT or SIGTERM.
// A card waiting for a PIN is interrupted this way.
func Context(parent context.Context, logger logrus.FieldLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := MakeSigintChan()
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			logger.Infof("got %s, cancelling", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
