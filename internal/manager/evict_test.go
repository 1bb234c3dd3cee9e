package manager

import (
	"fmt"
	"testing"
	"time"

	"bundled/internal/manifest"
)

// cachedEnv returns an env whose bundles are all present in the cache.
func cachedEnv(t *testing.T, n int, opts ...func(*ManagerConfig)) (*testEnv, []string) {
	t.Helper()
	var bundles []manifest.Bundle
	var ids []string
	for i := 0; i < n; i++ {
		b := testBundle(fmt.Sprintf("L%d", i))
		bundles = append(bundles, b)
		ids = append(ids, b.Name)
	}
	env := newTestEnv(t, bundles, opts...)
	for i := range bundles {
		if err := env.store.Put(&bundles[i], payloadFor(bundles[i].Name)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	env.setManifest(t, bundles)
	return env, ids
}

func (env *testEnv) load(t *testing.T, name string) {
	t.Helper()
	env.clock.Advance(time.Second)
	env.m.Request(env.bundle(t, name))
	env.m.wg.Wait()
	if !env.m.IsReady(env.bundle(t, name)) {
		t.Fatalf("%s not ready", name)
	}
}

func TestLoadedSetEvictsLeastRecentlyTouched(t *testing.T) {
	env, ids := cachedEnv(t, 5, func(c *ManagerConfig) { c.MaxLoadedBundles = 3 })
	for _, id := range ids {
		env.load(t, id)
		if n := len(env.m.Loaded()); n > 3 {
			t.Fatalf("loaded set grew to %d", n)
		}
	}
	if got := env.m.Loaded(); fmt.Sprint(got) != "[L2 L3 L4]" {
		t.Fatalf("loaded=%v", got)
	}
	l0 := env.bundle(t, "L0")
	if env.m.IsReady(l0) {
		t.Fatalf("L0 should have been evicted")
	}
	if !env.m.IsCached(l0) || !env.store.Has(l0) {
		t.Fatalf("eviction must keep the cache copy")
	}

	// Touching L2 moves it to the newest position, so L3 goes next.
	if !env.m.Request(env.bundle(t, "L2")) {
		t.Fatalf("L2 should be ready")
	}
	env.load(t, "L0")
	if got := env.m.Loaded(); fmt.Sprint(got) != "[L4 L2 L0]" {
		t.Fatalf("loaded=%v", got)
	}
	if env.m.IsReady(env.bundle(t, "L3")) {
		t.Fatalf("L3 should have been evicted")
	}
	if s := env.m.Status(); s.EvictionsTotal != 3 {
		t.Fatalf("evictions=%d", s.EvictionsTotal)
	}
	evs := env.events.Named(EventBundleUnloaded)
	if len(evs) != 3 || evs[0].Bundle != "L0" || evs[0].Fields["reason"] != "evicted" {
		t.Fatalf("events=%+v", evs)
	}
}

func TestIncludedBundlesNeverTracked(t *testing.T) {
	core := testBundle("Core")
	core.Included = true
	env := newTestEnv(t, []manifest.Bundle{core}, func(c *ManagerConfig) { c.MaxLoadedBundles = 1 })
	if err := writePackaged(env, "Core"); err != nil {
		t.Fatalf("package: %v", err)
	}
	env.setManifest(t, []manifest.Bundle{core})
	c := env.bundle(t, "Core")
	if !env.m.IsCached(c) {
		t.Fatalf("included bundle must count as cached")
	}
	env.m.Request(c)
	env.m.wg.Wait()
	if !env.m.IsReady(c) {
		t.Fatalf("included bundle not ready")
	}
	if n := len(env.m.Loaded()); n != 0 {
		t.Fatalf("included bundle tracked in loaded set")
	}
}

func TestCleanupEvictsOldestByTouchTime(t *testing.T) {
	env, ids := cachedEnv(t, 3)
	for _, id := range ids {
		env.load(t, id)
	}
	env.clock.Advance(time.Second)
	env.m.Request(env.bundle(t, "L0"))

	if n := env.m.Cleanup(); n != 0 {
		t.Fatalf("cleanup within capacity evicted %d", n)
	}
	env.m.mu.Lock()
	env.m.maxLoaded = 1
	env.m.mu.Unlock()
	if n := env.m.Cleanup(); n != 2 {
		t.Fatalf("cleanup evicted %d want 2", n)
	}
	if !env.m.IsReady(env.bundle(t, "L0")) {
		t.Fatalf("most recently touched bundle evicted")
	}
	if got := env.m.Loaded(); fmt.Sprint(got) != "[L0]" {
		t.Fatalf("loaded=%v", got)
	}
}
