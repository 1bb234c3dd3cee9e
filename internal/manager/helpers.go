package manager

import (
	"hash/crc32"

	"bundled/internal/manifest"
)

// verifyContent checks data against the descriptor's CRC-32. A zero hash
// disables the check.
func verifyContent(b *manifest.Bundle, data []byte) error {
	if b.ContentHash == 0 {
		return nil
	}
	if got := crc32.ChecksumIEEE(data); got != b.ContentHash {
		return integrityError{name: b.Name, want: b.ContentHash, got: got}
	}
	return nil
}

func indexOf(list []*BundleState, st *BundleState) int {
	for i, s := range list {
		if s == st {
			return i
		}
	}
	return -1
}

func remove(list []*BundleState, st *BundleState) []*BundleState {
	if i := indexOf(list, st); i >= 0 {
		return append(list[:i], list[i+1:]...)
	}
	return list
}

func names(list []*BundleState) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, s.bundle.Name)
	}
	return out
}
