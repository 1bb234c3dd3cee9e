// Package registry builds bundle catalogs from a directory of bundle files.
// It is used by publishing tools to produce the Manifest served from a
// content root or shipped in a package directory.
package registry

import (
	"fmt"
	"hash/crc32"
	"io"
	"path"
	"sort"

	"github.com/spf13/afero"

	"bundled/internal/manifest"
)

// ScanOptions controls Scan.
type ScanOptions struct {
	// Included marks every scanned bundle as shipped with the application.
	Included bool
	// Skip lists file names that are not bundles, such as the catalog itself.
	Skip []string
}

// Scan describes every regular file directly under dir as a bundle named
// after the file. Size and content hash come from the file; Version is 1.
// Results are sorted by name.
func Scan(fs afero.Fs, dir string, opts ScanOptions) ([]manifest.Bundle, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	skip := make(map[string]bool, len(opts.Skip))
	for _, s := range opts.Skip {
		skip[s] = true
	}
	var out []manifest.Bundle
	for _, e := range entries {
		if e.IsDir() || skip[e.Name()] || e.Name()[0] == '.' {
			continue
		}
		sum, n, err := checksum(fs, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, manifest.Bundle{
			Name:        e.Name(),
			Version:     1,
			Size:        n,
			ContentHash: sum,
			Included:    opts.Included,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func checksum(fs afero.Fs, name string) (uint32, int64, error) {
	f, err := fs.Open(name)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	h := crc32.NewIEEE()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, 0, fmt.Errorf("hash %s: %w", name, err)
	}
	return h.Sum32(), n, nil
}

// Merge carries hand-edited metadata (dependencies, assets, scene and preload
// flags, version) from prev onto freshly scanned bundles. A bundle whose
// content hash changed gets the next version. Dependencies on bundles that
// are no longer present are dropped.
func Merge(prev *manifest.Manifest, scanned []manifest.Bundle) []manifest.Bundle {
	if prev == nil {
		return scanned
	}
	present := make(map[string]bool, len(scanned))
	for _, b := range scanned {
		present[b.Name] = true
	}
	out := make([]manifest.Bundle, 0, len(scanned))
	for _, b := range scanned {
		if p := prev.Lookup(b.Name); p != nil {
			b.Version = p.Version
			if p.ContentHash != b.ContentHash {
				b.Version++
			}
			b.IsScene = p.IsScene
			b.Preload = p.Preload
			b.Included = b.Included || p.Included
			b.Assets = append([]string(nil), p.Assets...)
			for _, d := range p.Dependencies {
				if present[d] {
					b.Dependencies = append(b.Dependencies, d)
				}
			}
		}
		out = append(out, b)
	}
	return out
}

// Build scans dir, merges prev and validates the result.
func Build(fs afero.Fs, dir string, prev *manifest.Manifest, opts ScanOptions) (*manifest.Manifest, error) {
	bs, err := Scan(fs, dir, opts)
	if err != nil {
		return nil, err
	}
	return manifest.New(Merge(prev, bs))
}
