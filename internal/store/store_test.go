package store

import (
	"errors"
	"testing"

	"github.com/spf13/afero"

	"bundled/internal/manifest"
)

func newMem(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return New(fs, "/cache"), fs
}

func TestPutHasReadDelete(t *testing.T) {
	s, _ := newMem(t)
	b := &manifest.Bundle{Name: "Weapon", Version: 3}
	if s.Has(b) {
		t.Fatalf("empty store reports cached")
	}
	if _, err := s.Read(b); !errors.Is(err, ErrNotCached) {
		t.Fatalf("expected ErrNotCached, got %v", err)
	}
	if err := s.Put(b, []byte("payload")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !s.Has(b) {
		t.Fatalf("expected cached after put")
	}
	data, err := s.Read(b)
	if err != nil || string(data) != "payload" {
		t.Fatalf("read=%q err=%v", data, err)
	}
	if err := s.Delete(b); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Has(b) {
		t.Fatalf("expected not cached after delete")
	}
	if err := s.Delete(b); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}

func TestCode_ChangesWithVersion(t *testing.T) {
	a := Code(&manifest.Bundle{Name: "A", Version: 1})
	b := Code(&manifest.Bundle{Name: "A", Version: 2})
	if a == b || len(a) != 40 {
		t.Fatalf("codes a=%s b=%s", a, b)
	}
	if a != Code(&manifest.Bundle{Name: "A", Version: 1}) {
		t.Fatalf("code must be deterministic")
	}
}

func TestHas_IgnoresPartialWrites(t *testing.T) {
	s, fs := newMem(t)
	b := &manifest.Bundle{Name: "A"}
	if err := fs.MkdirAll("/cache/"+Code(b), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := afero.WriteFile(fs, "/cache/"+Code(b)+"/data.part", []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if s.Has(b) {
		t.Fatalf("partial copy must not count as cached")
	}
}

func TestPurge_RemovesOnlyUnknownCodes(t *testing.T) {
	s, fs := newMem(t)
	m, err := manifest.New([]manifest.Bundle{{Name: "keep", Version: 1}})
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	keep := m.Lookup("keep")
	old := &manifest.Bundle{Name: "keep", Version: 0}
	gone := &manifest.Bundle{Name: "gone"}
	for _, b := range []*manifest.Bundle{keep, old, gone} {
		if err := s.Put(b, []byte("x")); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	removed, err := s.Purge(m)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("removed=%v", removed)
	}
	if !s.Has(keep) || s.Has(old) || s.Has(gone) {
		t.Fatalf("purge kept the wrong entries")
	}
	if ok, _ := afero.DirExists(fs, "/cache/"+Code(gone)); ok {
		t.Fatalf("purged dir still present")
	}
}

func TestCodes_MissingRoot(t *testing.T) {
	s, _ := newMem(t)
	codes, err := s.Codes()
	if err != nil || len(codes) != 0 {
		t.Fatalf("codes=%v err=%v", codes, err)
	}
}
