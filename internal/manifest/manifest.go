// Package manifest holds the bundle catalog: an immutable, validated list of
// bundle descriptors with O(1) name lookup, asset/scene owner search and
// dependency closure traversal.
package manifest

import (
	"fmt"
	"sort"
)

// Bundle describes one fetchable content package.
type Bundle struct {
	Name         string   `json:"name" yaml:"name" toml:"name"`
	ContentHash  uint32   `json:"crc" yaml:"crc" toml:"crc"`
	Version      int      `json:"version" yaml:"version" toml:"version"`
	Size         int64    `json:"size" yaml:"size" toml:"size"`
	Included     bool     `json:"included" yaml:"included" toml:"included"`
	Preload      bool     `json:"preload" yaml:"preload" toml:"preload"`
	IsScene      bool     `json:"is_scene" yaml:"is_scene" toml:"is_scene"`
	Assets       []string `json:"assets" yaml:"assets" toml:"assets"`
	Dependencies []string `json:"dependencies" yaml:"dependencies" toml:"dependencies"`

	assets map[string]struct{}
}

// HasAsset reports whether name is one of the bundle's assets.
func (b *Bundle) HasAsset(name string) bool {
	if b.assets == nil {
		for _, a := range b.Assets {
			if a == name {
				return true
			}
		}
		return false
	}
	_, ok := b.assets[name]
	return ok
}

// Manifest is the catalog of bundles for a session. It is never mutated after New.
type Manifest struct {
	bundles []*Bundle
	byName  map[string]*Bundle
}

// New validates bundles and builds a Manifest. Names must be unique and
// non-empty, dependencies must resolve within the catalog and the dependency
// graph must be acyclic.
func New(bundles []Bundle) (*Manifest, error) {
	if len(bundles) == 0 {
		return nil, ErrEmptyManifest
	}
	m := &Manifest{
		bundles: make([]*Bundle, 0, len(bundles)),
		byName:  make(map[string]*Bundle, len(bundles)),
	}
	for i := range bundles {
		b := bundles[i]
		if b.Name == "" {
			return nil, fmt.Errorf("bundle #%d: %w", i, ErrEmptyName)
		}
		if _, dup := m.byName[b.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBundle, b.Name)
		}
		b.Assets = append([]string(nil), b.Assets...)
		b.Dependencies = append([]string(nil), b.Dependencies...)
		b.assets = make(map[string]struct{}, len(b.Assets))
		for _, a := range b.Assets {
			b.assets[a] = struct{}{}
		}
		p := &b
		m.bundles = append(m.bundles, p)
		m.byName[b.Name] = p
	}
	for _, b := range m.bundles {
		for _, dep := range b.Dependencies {
			if dep == b.Name {
				return nil, &CycleError{Path: []string{b.Name, b.Name}}
			}
			if _, ok := m.byName[dep]; !ok {
				return nil, fmt.Errorf("%w: %s -> %s", ErrDanglingDependency, b.Name, dep)
			}
		}
	}
	if err := m.checkAcyclic(); err != nil {
		return nil, err
	}
	return m, nil
}

// Len returns the number of bundles.
func (m *Manifest) Len() int { return len(m.bundles) }

// Bundles returns the descriptors in catalog order. The slice is a copy; the
// descriptors are shared and must not be modified.
func (m *Manifest) Bundles() []*Bundle {
	out := make([]*Bundle, len(m.bundles))
	copy(out, m.bundles)
	return out
}

// Names returns bundle names sorted alphabetically.
func (m *Manifest) Names() []string {
	out := make([]string, 0, len(m.bundles))
	for _, b := range m.bundles {
		out = append(out, b.Name)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the bundle with the given name, or nil.
func (m *Manifest) Lookup(name string) *Bundle {
	return m.byName[name]
}

// Resolve looks up names in order and skips unknown ones.
func (m *Manifest) Resolve(names ...string) []*Bundle {
	out := make([]*Bundle, 0, len(names))
	for _, n := range names {
		if b := m.byName[n]; b != nil {
			out = append(out, b)
		}
	}
	return out
}

// FindAssetOwner returns the first non-scene bundle (catalog order) containing asset.
func (m *Manifest) FindAssetOwner(asset string) *Bundle {
	for _, b := range m.bundles {
		if !b.IsScene && b.HasAsset(asset) {
			return b
		}
	}
	return nil
}

// FindSceneOwner returns the first scene bundle (catalog order) containing scene.
func (m *Manifest) FindSceneOwner(scene string) *Bundle {
	for _, b := range m.bundles {
		if b.IsScene && b.HasAsset(scene) {
			return b
		}
	}
	return nil
}
