package manager

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/spf13/afero"

	"bundled/internal/manifest"
	"bundled/internal/store"
)

// startLoadLocked materializes a cached bundle in the background. It is a
// no-op while any transfer for the bundle is already running.
func (m *Manager) startLoadLocked(st *BundleState) {
	if st.transfer != nil || m.closed {
		return
	}
	ctx, cancel := context.WithCancel(m.ctx)
	t := newTransfer(kindLoad, cancel, m.now())
	st.transfer = t
	st.clearError()
	m.activeLoads++
	m.wg.Add(1)
	go m.runLoad(ctx, st, t)
}

func (m *Manager) runLoad(ctx context.Context, st *BundleState, t *transfer) {
	defer m.wg.Done()
	defer t.cancel()
	b := st.bundle
	data, err := m.readLocal(b)
	if err == nil {
		err = ctx.Err()
	}
	var h Handle
	if err == nil {
		h, err = m.loader.Load(b, data)
	}
	m.commitLoad(st, t, h, err)
}

// readLocal returns the bytes of a bundle from the package or the cache.
func (m *Manager) readLocal(b *manifest.Bundle) ([]byte, error) {
	if b.Included {
		data, err := afero.ReadFile(m.pkg, b.Name)
		if err != nil {
			return nil, fmt.Errorf("read packaged bundle %s: %w", b.Name, err)
		}
		return data, nil
	}
	return m.store.Read(b)
}

// commitLoad applies the outcome of a materialization, whether it ran on its
// own or at the end of a download.
func (m *Manager) commitLoad(st *BundleState, t *transfer, h Handle, err error) {
	m.mu.Lock()
	defer m.unlock()
	if st.transfer != t {
		if h != nil {
			m.closers = append(m.closers, h)
		}
		return
	}
	st.transfer = nil
	if t.kind == kindLoad {
		m.activeLoads--
	}
	now := m.now()
	b := st.bundle
	switch {
	case errors.Is(err, store.ErrNotCached):
		// The cache copy vanished underneath us; fetch it again if still wanted.
		st.cached = false
		if st.requested {
			m.enqueue(st)
		}
		return
	case errors.Is(err, context.Canceled) && m.closed:
		return
	case err != nil:
		m.invalidLocked(st, now, err)
		return
	}
	m.dequeue(st)
	if !st.requested {
		m.closers = append(m.closers, h)
		m.deferIdle(now, m.idleShortGrace)
		return
	}
	st.handle = h
	st.touch(now)
	m.loadsTotal++
	m.markLoadedLocked(st)
	m.deferIdle(now, m.idleGrace)
	m.log.Debug().Str("bundle", b.Name).Str("transfer_id", t.id).Str("kind", t.kind.String()).Msg("bundle ready")
	m.emit(EventBundleReady, b.Name, map[string]any{"transfer_id": t.id})
}

// Blob is the default Handle: the raw bundle bytes held in memory.
type Blob struct {
	Name   string
	Data   []byte
	closed atomic.Bool
}

func (b *Blob) Close() error {
	b.closed.Store(true)
	return nil
}

// Closed reports whether Close has been called.
func (b *Blob) Closed() bool { return b.closed.Load() }

// BlobLoader materializes bundles as Blobs. Empty payloads are rejected.
type BlobLoader struct{}

func (BlobLoader) Load(b *manifest.Bundle, data []byte) (Handle, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("bundle %s: empty payload", b.Name)
	}
	return &Blob{Name: b.Name, Data: data}, nil
}
