// Package signalwatch turns OS interrupt/termination signals into a
// cooperative terminate flag on an env.Environment, mirroring the
// original console's SIGINT handling: a running script or REPL statement
// gets one chance to unwind cleanly rather than being killed outright.
package signalwatch

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/hammelm/mempeek/internal/env"
)

// Watch installs a signal handler for SIGINT, SIGTERM and SIGABRT that
// calls e.SetTerminate on delivery. It returns a stop function that
// restores default signal handling; callers should defer it. The
// returned context is canceled on the same delivery, for callers (like a
// bubbletea program) that want to shut down rather than just flag the
// interpreter.
func Watch(e *env.Environment) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGABRT)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			log.WithField("signal", sig.String()).Info("terminate requested")
			e.SetTerminate()
			cancel()
		case <-done:
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		close(done)
	}
}
