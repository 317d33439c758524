package signalwatch

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/hammelm/mempeek/internal/env"
)

func TestWatchSetsTerminateOnSIGINT(t *testing.T) {
	e := env.New()
	ctx, stop := Watch(e)
	defer stop()

	if err := syscall.Kill(os.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("kill: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-ctx.Done():
			if !e.Terminated() {
				t.Fatal("context canceled but environment not marked terminated")
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for terminate signal to be observed")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
