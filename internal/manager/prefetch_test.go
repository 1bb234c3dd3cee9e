package manager

import (
	"errors"
	"testing"
	"time"

	"bundled/internal/manifest"
	"bundled/internal/netstate"
)

func prefetchEnv(t *testing.T, conn Connectivity) *testEnv {
	t.Helper()
	bundles := []manifest.Bundle{testBundle("Region1"), testBundle("Region2", "Shared"), testBundle("Shared"), testBundle("Weapon")}
	return newReadyEnv(t, bundles, func(c *ManagerConfig) {
		c.Connectivity = conn
		c.Prefetch = []PrefetchGroup{
			{Name: "regions", Resolve: Names("Region1", "Region2")},
			{Name: "weapons", Resolve: Names("Weapon")},
		}
	})
}

func TestPrefetchWaitsForIdleGrace(t *testing.T) {
	env := prefetchEnv(t, nil)
	env.m.Tick()
	if len(env.m.Queue()) != 0 {
		t.Fatalf("prefetch ran before the idle grace elapsed")
	}
	env.clock.Advance(defaultIdleGrace)
	env.m.Tick()
	if q := env.m.Queue(); len(q) != 3 {
		t.Fatalf("queue=%v want regions closure", q)
	}
	evs := env.events.Named(EventPrefetch)
	if len(evs) != 1 || evs[0].Fields["group"] != "regions" {
		t.Fatalf("events=%+v", evs)
	}
}

func TestPrefetchWalksGroupsInOrder(t *testing.T) {
	env := prefetchEnv(t, nil)
	env.clock.Advance(defaultIdleGrace)
	env.settle(t)
	if !env.m.IsCachedFor(Names("Region1", "Region2", "Shared")) {
		t.Fatalf("regions not cached")
	}
	if env.m.IsCached(env.bundle(t, "Weapon")) {
		t.Fatalf("weapons prefetched before the short grace")
	}
	for _, n := range []string{"Region1", "Region2", "Shared"} {
		if env.m.IsReady(env.bundle(t, n)) {
			t.Fatalf("prefetch loaded %s into memory", n)
		}
	}

	env.clock.Advance(defaultIdleShortGrace)
	env.settle(t)
	if !env.m.IsCached(env.bundle(t, "Weapon")) {
		t.Fatalf("weapons not prefetched")
	}
	env.clock.Advance(defaultIdleShortGrace)
	env.m.Tick()
	env.m.mu.Lock()
	done := env.m.prefetchDone
	env.m.mu.Unlock()
	if !done {
		t.Fatalf("prefetch should be exhausted")
	}
	env.m.ResetPrefetch()
	env.m.mu.Lock()
	done = env.m.prefetchDone
	env.m.mu.Unlock()
	if done {
		t.Fatalf("reset did not re-arm prefetch")
	}
}

func TestPrefetchOnlyOnLocalArea(t *testing.T) {
	env := prefetchEnv(t, netstate.NewStatic(netstate.ReachableViaCarrier))
	env.clock.Advance(time.Minute)
	env.m.Tick()
	if len(env.m.Queue()) != 0 {
		t.Fatalf("prefetch on metered connection")
	}
}

func TestForegroundActivityDefersPrefetch(t *testing.T) {
	env := prefetchEnv(t, nil)
	env.clock.Advance(defaultIdleGrace - time.Second)
	env.m.Cache(env.bundle(t, "Weapon"))
	env.settle(t)
	env.clock.Advance(2 * time.Second)
	env.m.Tick()
	if len(env.events.Named(EventPrefetch)) != 0 {
		t.Fatalf("prefetch ran inside the grace after foreground activity")
	}
}

func TestPrefetchSkipsFailedBundles(t *testing.T) {
	env := prefetchEnv(t, nil)
	env.fetcher.setErr("Region1", errors.New("404"))
	env.clock.Advance(defaultIdleGrace)
	env.settle(t)
	if env.state(t, "Region1").lastError != DownloadFailed {
		t.Fatalf("expected Region1 failure")
	}
	env.clock.Advance(time.Minute)
	env.settle(t)
	if n := env.fetcher.callCount("Region1"); n != 1 {
		t.Fatalf("prefetch retried a failed bundle %d times", n)
	}
	if !env.m.IsCached(env.bundle(t, "Weapon")) {
		t.Fatalf("later group starved by a failed bundle")
	}
}
