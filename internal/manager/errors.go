package manager

import (
	"errors"
	"fmt"
)

// ErrManifestAlreadySet is returned when a second manifest is offered. The
// manifest is fixed for the manager's lifetime; replacing it is a programming error.
var ErrManifestAlreadySet = errors.New("manifest already set")

// ErrNoBundles signals a facade call made before any manifest exists.
var ErrNoBundles = errors.New("no bundles: manifest not set")

// IsNoBundles reports whether err indicates a missing manifest (return 503).
func IsNoBundles(err error) bool { return errors.Is(err, ErrNoBundles) }

type bundleNotFoundError struct{ name string }

func (e bundleNotFoundError) Error() string { return "bundle not found: " + e.name }

// ErrBundleNotFound returns an error for a name that is not in the manifest.
func ErrBundleNotFound(name string) error { return bundleNotFoundError{name: name} }

// IsBundleNotFound reports whether err indicates an unknown bundle name.
func IsBundleNotFound(err error) bool {
	var e bundleNotFoundError
	return errors.As(err, &e)
}

// integrityError reports fetched bytes whose checksum does not match the manifest.
type integrityError struct {
	name      string
	want, got uint32
}

func (e integrityError) Error() string {
	return fmt.Sprintf("bundle %s: content hash mismatch: want %08x, got %08x", e.name, e.want, e.got)
}

// IsIntegrity reports whether err is a content hash mismatch.
func IsIntegrity(err error) bool {
	var e integrityError
	return errors.As(err, &e)
}

// errOffline is recorded when a transfer is refused for lack of connectivity.
var errOffline = errors.New("no internet connection")
