// Package store is the local persistent bundle cache. Every cached bundle
// lives in its own directory named by a code derived from the bundle name and
// version, so a version bump never collides with a stale copy:
//
//	<root>/<code>/data
package store

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/spf13/afero"

	"bundled/internal/manifest"
)

const dataFile = "data"

// ErrNotCached is returned by Read when no copy of the bundle is present.
var ErrNotCached = errors.New("store: bundle not cached")

// Store reads and writes cached bundle bytes on an afero filesystem.
// It assumes a single writing process; existence checks stand in for locks.
type Store struct {
	fs   afero.Fs
	root string
}

// New returns a Store rooted at root on fs.
func New(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root}
}

// NewOS returns a Store on the host filesystem.
func NewOS(root string) *Store { return New(afero.NewOsFs(), root) }

// Code is the cache directory name for a bundle: sha1 of the name followed by
// the version rendered as a 128-bit hex hash.
func Code(b *manifest.Bundle) string {
	sum := sha1.Sum([]byte(b.Name + fmt.Sprintf("%032x", uint32(b.Version))))
	return hex.EncodeToString(sum[:])
}

// Root returns the cache root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) dir(b *manifest.Bundle) string { return path.Join(s.root, Code(b)) }

// Has reports whether a complete copy of b is cached.
func (s *Store) Has(b *manifest.Bundle) bool {
	fi, err := s.fs.Stat(path.Join(s.dir(b), dataFile))
	return err == nil && !fi.IsDir()
}

// Put writes data for b. The bytes land in a temporary file first and are
// renamed into place so a crash never leaves a partial copy that Has accepts.
func (s *Store) Put(b *manifest.Bundle, data []byte) error {
	dir := s.dir(b)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp := path.Join(dir, dataFile+".part")
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, path.Join(dir, dataFile)); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("commit %s: %w", b.Name, err)
	}
	return nil
}

// Read returns the cached bytes for b.
func (s *Store) Read(b *manifest.Bundle) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path.Join(s.dir(b), dataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotCached, b.Name)
		}
		return nil, err
	}
	return data, nil
}

// Delete removes the cached copy of b. Deleting a missing entry is not an error.
func (s *Store) Delete(b *manifest.Bundle) error {
	return s.fs.RemoveAll(s.dir(b))
}

// Codes lists the cache directory names currently present.
func (s *Store) Codes() ([]string, error) {
	exists, err := afero.DirExists(s.fs, s.root)
	if err != nil || !exists {
		return nil, err
	}
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// DeleteCodes recursively removes the listed cache directories.
func (s *Store) DeleteCodes(codes ...string) error {
	var errs []error
	for _, c := range codes {
		if err := s.fs.RemoveAll(path.Join(s.root, c)); err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", c, err))
		}
	}
	return errors.Join(errs...)
}

// Purge deletes every cache directory that does not belong to a descriptor of
// m and returns the removed codes.
func (s *Store) Purge(m *manifest.Manifest) ([]string, error) {
	codes, err := s.Codes()
	if err != nil {
		return nil, err
	}
	keep := make(map[string]struct{}, m.Len())
	for _, b := range m.Bundles() {
		keep[Code(b)] = struct{}{}
	}
	var stale []string
	for _, c := range codes {
		if _, ok := keep[c]; !ok {
			stale = append(stale, c)
		}
	}
	if len(stale) == 0 {
		return nil, nil
	}
	return stale, s.DeleteCodes(stale...)
}
