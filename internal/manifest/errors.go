package manifest

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyManifest is returned for an empty payload or a catalog without bundles.
	ErrEmptyManifest = errors.New("manifest: empty")
	// ErrEmptyName is returned when a descriptor has no name.
	ErrEmptyName = errors.New("manifest: bundle without name")
	// ErrDuplicateBundle is returned when two descriptors share a name.
	ErrDuplicateBundle = errors.New("manifest: duplicate bundle")
	// ErrDanglingDependency is returned when a dependency name is not in the catalog.
	ErrDanglingDependency = errors.New("manifest: unknown dependency")
)

// CycleError reports a dependency cycle. Path starts and ends with the same bundle.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "manifest: dependency cycle: " + strings.Join(e.Path, " -> ")
}

// IsCycle reports whether err is (or wraps) a CycleError.
func IsCycle(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}
