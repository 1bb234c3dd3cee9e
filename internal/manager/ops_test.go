package manager

import (
	"context"
	"testing"
	"time"

	"bundled/internal/manifest"
)

func TestRunDrivesTransfersUntilCanceled(t *testing.T) {
	env := newReadyEnv(t, []manifest.Bundle{testBundle("A")}, func(c *ManagerConfig) { c.TickInterval = 5 * time.Millisecond })
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.m.Run(ctx) }()

	a := env.bundle(t, "A")
	env.m.Request(a)
	waitFor(t, "A ready", func() bool { return env.m.IsReady(a) })
	h := env.state(t, "A").handle.(*Blob)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return")
	}
	if !h.Closed() {
		t.Fatalf("close did not release loaded handles")
	}
	env.m.Tick()
	if env.m.Request(a) {
		t.Fatalf("closed manager reported ready")
	}
}

func TestCloseCancelsInFlight(t *testing.T) {
	env := newReadyEnv(t, []manifest.Bundle{testBundle("A")})
	env.fetcher.gate = make(chan struct{})
	env.m.Cache(env.bundle(t, "A"))
	env.m.Tick()
	finished := make(chan struct{})
	go func() {
		env.m.Close()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("close blocked on a stalled transfer")
	}
	if s := env.m.Status(); s.ErrorsTotal != 0 {
		t.Fatalf("shutdown recorded errors: %+v", s)
	}
	env.m.Close()
}
