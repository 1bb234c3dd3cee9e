package manager

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"bundled/internal/manifest"
)

type transferKind int

const (
	kindDownload transferKind = iota
	kindLoad
)

func (k transferKind) String() string {
	if k == kindLoad {
		return "load"
	}
	return "download"
}

// transfer is one in-flight unit of work for a bundle. A BundleState points at
// its current transfer; clearing that pointer abandons the work.
type transfer struct {
	id       string
	kind     transferKind
	cancel   context.CancelFunc
	started  time.Time
	progress atomic.Uint64
}

func newTransfer(kind transferKind, cancel context.CancelFunc, now time.Time) *transfer {
	return &transfer{id: uuid.NewString(), kind: kind, cancel: cancel, started: now}
}

func (t *transfer) setProgress(f float64) {
	if f < 0 {
		f = 0
	} else if f > 1 {
		f = 1
	}
	t.progress.Store(math.Float64bits(f))
}

func (t *transfer) fraction() float64 { return math.Float64frombits(t.progress.Load()) }

// BundleState tracks one manifest descriptor. Status is never stored; it is
// derived from the handle, the transfer and cache membership.
type BundleState struct {
	bundle    *manifest.Bundle
	transfer  *transfer
	requested bool
	handle    Handle
	// cached mirrors presence in the local store; the manager is its only writer.
	cached      bool
	lastUsed    time.Time
	lastError   ErrorKind
	lastErrorAt time.Time
}

func newBundleState(b *manifest.Bundle, cached bool) *BundleState {
	return &BundleState{bundle: b, cached: cached}
}

// deriveStatus maps the three underlying facts to a Status. First match wins:
// ready, loading, cached, downloading, unknown.
func deriveStatus(ready, cached, transferring bool) Status {
	switch {
	case ready:
		return StatusReady
	case cached && transferring:
		return StatusLoading
	case cached:
		return StatusCached
	case transferring:
		return StatusDownloading
	default:
		return StatusUnknown
	}
}

func (s *BundleState) status() Status {
	return deriveStatus(s.handle != nil, s.isCached(), s.transfer != nil)
}

func (s *BundleState) isCached() bool {
	return s.handle != nil || s.bundle.Included || s.cached
}

func (s *BundleState) isReady() bool { return s.handle != nil }

func (s *BundleState) availableBytes() int64 {
	if s.isCached() {
		return s.bundle.Size
	}
	if s.transfer != nil {
		return int64(s.transfer.fraction() * float64(s.bundle.Size))
	}
	return 0
}

func (s *BundleState) touch(now time.Time) { s.lastUsed = now }

func (s *BundleState) setError(k ErrorKind, now time.Time) {
	s.lastError = k
	s.lastErrorAt = now
}

func (s *BundleState) clearError() {
	s.lastError = ErrorNone
	s.lastErrorAt = time.Time{}
}

// waiting reports whether the bundle is still inside its retry backoff window.
func (s *BundleState) waiting(now time.Time, interval time.Duration) bool {
	return s.lastError != ErrorNone && now.Before(s.lastErrorAt.Add(interval))
}
