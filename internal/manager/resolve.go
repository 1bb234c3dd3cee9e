package manager

import "bundled/internal/manifest"

// Resolver maps a caller's notion of "what is needed" to manifest
// descriptors. Unknown names are skipped.
type Resolver func(m *manifest.Manifest) []*manifest.Bundle

// Names resolves bundle names in order.
func Names(names ...string) Resolver {
	return func(m *manifest.Manifest) []*manifest.Bundle { return m.Resolve(names...) }
}

// AssetOwners resolves the non-scene bundle owning each asset.
func AssetOwners(assets ...string) Resolver {
	return func(m *manifest.Manifest) []*manifest.Bundle {
		var out []*manifest.Bundle
		for _, a := range assets {
			if b := m.FindAssetOwner(a); b != nil {
				out = append(out, b)
			}
		}
		return out
	}
}

// SceneOwners resolves the scene bundle owning each scene.
func SceneOwners(scenes ...string) Resolver {
	return func(m *manifest.Manifest) []*manifest.Bundle {
		var out []*manifest.Bundle
		for _, s := range scenes {
			if b := m.FindSceneOwner(s); b != nil {
				out = append(out, b)
			}
		}
		return out
	}
}

// WithDependencies extends r with the dependency closure of its result,
// dependencies first.
func WithDependencies(r Resolver) Resolver {
	return func(m *manifest.Manifest) []*manifest.Bundle {
		roots := r(m)
		all, err := m.WithDependencies(roots...)
		if err != nil {
			return roots
		}
		return all
	}
}

// Concat joins resolvers in order, dropping duplicates.
func Concat(rs ...Resolver) Resolver {
	return func(m *manifest.Manifest) []*manifest.Bundle {
		seen := make(map[string]bool)
		var out []*manifest.Bundle
		for _, r := range rs {
			for _, b := range r(m) {
				if !seen[b.Name] {
					seen[b.Name] = true
					out = append(out, b)
				}
			}
		}
		return out
	}
}
