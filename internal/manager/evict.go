package manager

import "sort"

// markLoadedLocked records st as the most recently used loaded bundle and
// evicts from the oldest end past capacity. Included bundles are never tracked.
func (m *Manager) markLoadedLocked(st *BundleState) {
	if st.bundle.Included {
		return
	}
	if i := indexOf(m.loaded, st); i >= 0 {
		m.loaded = append(m.loaded[:i], m.loaded[i+1:]...)
	}
	m.loaded = append(m.loaded, st)
	for len(m.loaded) > m.maxLoaded {
		victim := m.loaded[0]
		m.loaded = m.loaded[1:]
		m.evictLocked(victim)
	}
}

// evictLocked unloads the in-memory handle. The cached copy is kept.
func (m *Manager) evictLocked(st *BundleState) {
	m.evictionsTotal++
	m.log.Debug().Str("bundle", st.bundle.Name).Time("last_used", st.lastUsed).Msg("evict loaded bundle")
	m.unloadLocked(st, "evicted")
}

// Cleanup scans every ready, non-included bundle and unloads the least
// recently touched ones until at most MaxLoadedBundles remain. It returns the
// number of bundles evicted.
func (m *Manager) Cleanup() int {
	m.mu.Lock()
	defer m.unlock()
	var ready []*BundleState
	for _, st := range m.states {
		if st.isReady() && !st.bundle.Included {
			ready = append(ready, st)
		}
	}
	if len(ready) <= m.maxLoaded {
		return 0
	}
	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].lastUsed.Equal(ready[j].lastUsed) {
			return ready[i].bundle.Name < ready[j].bundle.Name
		}
		return ready[i].lastUsed.Before(ready[j].lastUsed)
	})
	n := len(ready) - m.maxLoaded
	for _, st := range ready[:n] {
		m.evictLocked(st)
	}
	return n
}

// Loaded returns the names in the loaded set, oldest first.
func (m *Manager) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return names(m.loaded)
}
