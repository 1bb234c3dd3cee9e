package manager

import (
	"context"
	"hash/crc32"
	"net/url"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"

	"bundled/internal/fetch"
	"bundled/internal/manifest"
	"bundled/internal/store"
)

const testBaseURL = "http://cdn.test/linux/"

// fakeFetcher serves payloads by bundle name. When gate is set, every Get
// blocks until it receives a token or its context is canceled.
type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[string][]byte
	errs     map[string]error
	gate     chan struct{}
	calls    map[string]int
	order    []string
	inflight int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{payloads: map[string][]byte{}, errs: map[string]error{}, calls: map[string]int{}}
}

func (f *fakeFetcher) Get(ctx context.Context, rawURL string, onProgress fetch.ProgressFunc) ([]byte, error) {
	name := bundleNameFromURL(rawURL)
	f.mu.Lock()
	f.calls[name]++
	f.order = append(f.order, name)
	f.inflight++
	gate := f.gate
	data, err := f.payloads[name], f.errs[name]
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if onProgress != nil {
		onProgress(int64(len(data)), int64(len(data)))
	}
	return data, nil
}

func (f *fakeFetcher) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeFetcher) inFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inflight
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

func (f *fakeFetcher) setErr(name string, err error) {
	f.mu.Lock()
	f.errs[name] = err
	f.mu.Unlock()
}

func bundleNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	name, err := url.PathUnescape(path.Base(u.EscapedPath()))
	if err != nil {
		return path.Base(u.Path)
	}
	return name
}

// fakeClock is a manually advanced manager clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// payloadFor returns the canonical test bytes of a bundle.
func payloadFor(name string) []byte { return []byte("payload:" + name) }

// testBundle builds a descriptor whose hash and size match payloadFor.
func testBundle(name string, deps ...string) manifest.Bundle {
	data := payloadFor(name)
	return manifest.Bundle{
		Name:         name,
		ContentHash:  crc32.ChecksumIEEE(data),
		Version:      1,
		Size:         int64(len(data)),
		Dependencies: deps,
	}
}

type testEnv struct {
	m       *Manager
	fetcher *fakeFetcher
	clock   *fakeClock
	events  *MemoryPublisher
	fs      afero.Fs
	store   *store.Store
}

// newTestEnv builds a manager over an in-memory cache with every bundle
// payload registered on the fake fetcher. The manifest is not set.
func newTestEnv(t *testing.T, bundles []manifest.Bundle, opts ...func(*ManagerConfig)) *testEnv {
	t.Helper()
	env := &testEnv{
		fetcher: newFakeFetcher(),
		clock:   newFakeClock(),
		events:  NewMemoryPublisher(),
		fs:      afero.NewMemMapFs(),
	}
	for _, b := range bundles {
		env.fetcher.payloads[b.Name] = payloadFor(b.Name)
	}
	env.store = store.New(env.fs, "/cache")
	cfg := ManagerConfig{
		BaseURL:   testBaseURL,
		Store:     env.store,
		Fetcher:   env.fetcher,
		Publisher: env.events,
		Now:       env.clock.Now,
		UsageFS:   afero.NewMemMapFs(),
	}
	for _, o := range opts {
		o(&cfg)
	}
	env.m = NewWithConfig(cfg)
	t.Cleanup(env.m.Close)
	return env
}

// newReadyEnv is newTestEnv followed by SetManifest.
func newReadyEnv(t *testing.T, bundles []manifest.Bundle, opts ...func(*ManagerConfig)) *testEnv {
	t.Helper()
	env := newTestEnv(t, bundles, opts...)
	env.setManifest(t, bundles)
	return env
}

func (env *testEnv) setManifest(t *testing.T, bundles []manifest.Bundle) {
	t.Helper()
	mf, err := manifest.New(bundles)
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if err := env.m.SetManifest(mf); err != nil {
		t.Fatalf("set manifest: %v", err)
	}
}

func (env *testEnv) bundle(t *testing.T, name string) *manifest.Bundle {
	t.Helper()
	b := env.m.Lookup(name)
	if b == nil {
		t.Fatalf("bundle %s not in manifest", name)
	}
	return b
}

// settle ticks and waits for transfers until the queue drains and no load is
// in flight. It must not be used with a gated fetcher.
func (env *testEnv) settle(t *testing.T) {
	t.Helper()
	for i := 0; i < 100; i++ {
		env.m.Tick()
		env.m.wg.Wait()
		env.m.mu.Lock()
		idle := len(env.m.queue) == 0 && env.m.activeLoads == 0
		env.m.mu.Unlock()
		if idle {
			return
		}
	}
	t.Fatalf("manager did not settle; queue=%v", env.m.Queue())
}

// state returns a copy of the state fields of name for assertions.
func (env *testEnv) state(t *testing.T, name string) BundleState {
	t.Helper()
	env.m.mu.Lock()
	defer env.m.mu.Unlock()
	st := env.m.states[name]
	if st == nil {
		t.Fatalf("no state for %s", name)
	}
	return BundleState{
		bundle:      st.bundle,
		transfer:    st.transfer,
		requested:   st.requested,
		handle:      st.handle,
		cached:      st.cached,
		lastUsed:    st.lastUsed,
		lastError:   st.lastError,
		lastErrorAt: st.lastErrorAt,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}
