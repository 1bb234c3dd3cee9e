package manager

import "bundled/internal/manifest"

// Unload releases the in-memory handle of b and clears its requested flag.
// A load in flight is abandoned; a download keeps going as a cache-only fetch.
// The state record, its cache copy and error history are kept.
func (m *Manager) Unload(b *manifest.Bundle) {
	m.mu.Lock()
	defer m.unlock()
	if st := m.stateOf(b); st != nil {
		m.unloadLocked(st, "unload")
	}
}

func (m *Manager) unloadLocked(st *BundleState, reason string) {
	st.requested = false
	if st.transfer != nil && st.transfer.kind == kindLoad {
		m.abandonLocked(st)
	}
	m.loaded = remove(m.loaded, st)
	if st.handle == nil {
		return
	}
	m.closers = append(m.closers, st.handle)
	st.handle = nil
	m.emit(EventBundleUnloaded, st.bundle.Name, map[string]any{"reason": reason})
}

// Uncache unloads each bundle, abandons any transfer, drops it from the queue
// and deletes its cached copy. Included bundles keep their packaged bytes. It
// returns the first store error encountered.
func (m *Manager) Uncache(bs ...*manifest.Bundle) error {
	m.mu.Lock()
	defer m.unlock()
	var firstErr error
	for _, b := range bs {
		st := m.stateOf(b)
		if st == nil {
			continue
		}
		m.unloadLocked(st, "uncache")
		m.abandonLocked(st)
		m.dequeue(st)
		if st.bundle.Included {
			continue
		}
		if err := m.store.Delete(st.bundle); err != nil {
			m.log.Error().Err(err).Str("bundle", st.bundle.Name).Msg("delete cached bundle")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		st.cached = false
	}
	m.prefetchDone = false
	return firstErr
}
