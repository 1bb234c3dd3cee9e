package manager

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"

	"bundled/internal/manifest"
)

func TestSetManifestTwiceRejected(t *testing.T) {
	bundles := []manifest.Bundle{testBundle("A")}
	env := newReadyEnv(t, bundles)
	mf, _ := manifest.New([]manifest.Bundle{testBundle("Other")})
	if err := env.m.SetManifest(mf); !errors.Is(err, ErrManifestAlreadySet) {
		t.Fatalf("err=%v", err)
	}
	if env.m.Lookup("Other") != nil || env.m.Lookup("A") == nil {
		t.Fatalf("manifest replaced")
	}
	if evs := env.events.Named(EventManifestSet); len(evs) != 1 {
		t.Fatalf("manifest_set events=%d", len(evs))
	}
}

func TestSetManifestRejectsEmpty(t *testing.T) {
	env := newTestEnv(t, nil)
	if err := env.m.SetManifest(nil); !errors.Is(err, manifest.ErrEmptyManifest) {
		t.Fatalf("err=%v", err)
	}
	if env.m.Ready() {
		t.Fatalf("ready without manifest")
	}
}

func TestSetManifestPurgesStaleEntries(t *testing.T) {
	bundles := []manifest.Bundle{testBundle("A")}
	env := newTestEnv(t, bundles)
	stale := testBundle("Retired")
	oldA := testBundle("A")
	oldA.Version = 0
	keep := bundles[0]
	for _, b := range []*manifest.Bundle{&stale, &oldA, &keep} {
		if err := env.store.Put(b, payloadFor(b.Name)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	env.setManifest(t, bundles)
	if env.store.Has(&stale) || env.store.Has(&oldA) {
		t.Fatalf("stale entries survived purge")
	}
	if !env.store.Has(&keep) || !env.m.IsCached(env.bundle(t, "A")) {
		t.Fatalf("current entry purged")
	}
	evs := env.events.Named(EventManifestSet)
	if len(evs) != 1 || evs[0].Fields["purged"] != 2 {
		t.Fatalf("events=%+v", evs)
	}
}

func TestSetManifestPreloadsIncluded(t *testing.T) {
	core := testBundle("Core")
	core.Included = true
	core.Preload = true
	lazy := testBundle("Lazy")
	lazy.Included = true
	env := newTestEnv(t, []manifest.Bundle{core, lazy, testBundle("Remote")})
	for _, n := range []string{"Core", "Lazy"} {
		if err := writePackaged(env, n); err != nil {
			t.Fatalf("package: %v", err)
		}
	}
	env.setManifest(t, []manifest.Bundle{core, lazy, testBundle("Remote")})
	env.m.wg.Wait()
	if !env.m.IsReady(env.bundle(t, "Core")) {
		t.Fatalf("preload bundle not ready")
	}
	if env.m.IsReady(env.bundle(t, "Lazy")) {
		t.Fatalf("non-preload bundle loaded")
	}
	if env.fetcher.totalCalls() != 0 {
		t.Fatalf("preload went to the network")
	}
}

func TestPreloadMissingPackageRecordsInvalid(t *testing.T) {
	core := testBundle("Core")
	core.Included = true
	core.Preload = true
	env := newReadyEnv(t, []manifest.Bundle{core})
	env.m.wg.Wait()
	st := env.state(t, "Core")
	if st.lastError != InvalidBundle || st.requested {
		t.Fatalf("state=%+v", st)
	}
	if len(env.m.Queue()) != 0 {
		t.Fatalf("included bundle must not be queued for download")
	}
}

func TestLoadManifestFromPackage(t *testing.T) {
	env := newTestEnv(t, nil)
	pkg := afero.NewMemMapFs()
	payload := `{"bundles":[{"name":"A","version":1,"size":9},{"name":"B","dependencies":["A"]}]}`
	if err := afero.WriteFile(pkg, "Manifest", []byte(payload), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	src := FirstOf{PackageManifest{FS: afero.NewMemMapFs()}, PackageManifest{FS: pkg}}
	if err := env.m.LoadManifest(context.Background(), src); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !env.m.Ready() || env.m.Manifest().Len() != 2 {
		t.Fatalf("manifest not installed")
	}
}

func TestLoadManifestMalformedStaysNotReady(t *testing.T) {
	env := newTestEnv(t, nil)
	pkg := afero.NewMemMapFs()
	_ = afero.WriteFile(pkg, "Manifest.yaml", []byte("bundles: [\n"), 0o644)
	err := env.m.LoadManifest(context.Background(), PackageManifest{FS: pkg, Name: "Manifest.yaml"})
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if env.m.Ready() {
		t.Fatalf("ready after malformed manifest")
	}
	if err := env.m.LoadManifest(context.Background(), PackageManifest{FS: pkg, Name: "missing"}); err == nil {
		t.Fatalf("expected fetch error")
	}
}

func TestRemoteManifest(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fetcher.payloads["Manifest.toml"] = []byte("[[bundles]]\nname = \"A\"\nversion = 2\n")
	src := RemoteManifest{Fetcher: env.fetcher, URL: testBaseURL + "Manifest.toml"}
	if err := env.m.LoadManifest(testCtx(t), src); err != nil {
		t.Fatalf("load: %v", err)
	}
	if b := env.m.Lookup("A"); b == nil || b.Version != 2 {
		t.Fatalf("lookup=%+v", b)
	}
}

func TestFirstOfEmpty(t *testing.T) {
	if _, _, err := (FirstOf{}).Fetch(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
