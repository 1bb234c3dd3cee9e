package manager

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"

	"github.com/spf13/afero"

	"bundled/internal/manifest"
)

// DefaultManifestName is the catalog file name under the package directory
// and the platform content root.
const DefaultManifestName = "Manifest"

// SetManifest installs the catalog. It purges cache entries that belong to no
// descriptor, creates one state per bundle, restores persisted usage and
// starts loading bundles flagged both preload and included. A second call
// returns ErrManifestAlreadySet and changes nothing.
func (m *Manager) SetManifest(mf *manifest.Manifest) error {
	if mf == nil || mf.Len() == 0 {
		return manifest.ErrEmptyManifest
	}
	m.mu.Lock()
	defer m.unlock()
	if m.manifest != nil {
		m.log.Error().Int("bundles", mf.Len()).Msg("manifest already set; refusing replacement")
		return ErrManifestAlreadySet
	}
	purged, err := m.store.Purge(mf)
	if err != nil {
		m.log.Error().Err(err).Msg("purge stale cache entries")
	}
	now := m.now()
	preloads := 0
	for _, b := range mf.Bundles() {
		st := newBundleState(b, !b.Included && m.store.Has(b))
		m.states[b.Name] = st
		if rec, ok := m.usage[b.Name]; ok {
			m.restoreUsage(st, rec)
		}
	}
	m.manifest = mf
	for _, b := range mf.Bundles() {
		if b.Preload && b.Included {
			st := m.states[b.Name]
			st.requested = true
			m.startLoadLocked(st)
			preloads++
		}
	}
	m.idleAt = now.Add(m.idleGrace)
	m.prefetchDone = false
	m.log.Info().Int("bundles", mf.Len()).Int("purged", len(purged)).Int("preload", preloads).Msg("manifest set")
	m.emit(EventManifestSet, "", map[string]any{"bundles": mf.Len(), "purged": len(purged), "preload": preloads})
	return nil
}

// LoadManifest fetches and decodes a catalog from src and installs it. An
// empty or malformed payload leaves the manager not ready.
func (m *Manager) LoadManifest(ctx context.Context, src ManifestSource) error {
	data, format, err := src.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch manifest: %w", err)
	}
	mf, err := manifest.Decode(data, format)
	if err != nil {
		m.log.Error().Err(err).Msg("manifest rejected")
		return fmt.Errorf("decode manifest: %w", err)
	}
	return m.SetManifest(mf)
}

// ManifestSource produces a raw catalog payload.
type ManifestSource interface {
	Fetch(ctx context.Context) ([]byte, manifest.Format, error)
}

// PackageManifest reads the catalog from the application package.
type PackageManifest struct {
	FS   afero.Fs
	Name string
}

func (p PackageManifest) Fetch(_ context.Context) ([]byte, manifest.Format, error) {
	name := p.Name
	if name == "" {
		name = DefaultManifestName
	}
	format, err := manifest.FormatFor(name)
	if err != nil {
		return nil, "", err
	}
	data, err := afero.ReadFile(p.FS, name)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", name, err)
	}
	return data, format, nil
}

// RemoteManifest fetches the catalog from a URL.
type RemoteManifest struct {
	Fetcher Fetcher
	URL     string
}

func (r RemoteManifest) Fetch(ctx context.Context) ([]byte, manifest.Format, error) {
	pu, err := url.Parse(r.URL)
	if err != nil {
		return nil, "", fmt.Errorf("manifest url: %w", err)
	}
	format, err := manifest.FormatFor(path.Base(pu.Path))
	if err != nil {
		return nil, "", err
	}
	data, err := r.Fetcher.Get(ctx, r.URL, nil)
	if err != nil {
		return nil, "", err
	}
	return data, format, nil
}

// FirstOf tries each source in order and returns the first payload obtained.
type FirstOf []ManifestSource

func (f FirstOf) Fetch(ctx context.Context) ([]byte, manifest.Format, error) {
	var errs []error
	for _, src := range f {
		data, format, err := src.Fetch(ctx)
		if err == nil {
			return data, format, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return nil, "", errors.New("no manifest sources")
	}
	return nil, "", errors.Join(errs...)
}
