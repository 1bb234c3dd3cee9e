package manager

import "bundled/internal/netstate"

// PrefetchGroup is a named set of bundles warmed into the cache while idle.
type PrefetchGroup struct {
	Name    string
	Resolve Resolver
}

// prefetchIdle queues the first group, in priority order, that is not fully
// cached. Only unmetered connectivity qualifies. Entries are passive and go to
// the tail of the queue, so anything requested later still runs first within
// the cap. Bundles that failed with a content or server error are skipped until
// something else fetches them.
func (m *Manager) prefetchIdle(reach netstate.Reachability) {
	if m.prefetchDone || len(m.prefetch) == 0 || reach != netstate.ReachableViaLocalArea {
		return
	}
	now := m.now()
	for _, g := range m.prefetch {
		if g.Resolve == nil {
			continue
		}
		bs, err := m.manifest.WithDependencies(g.Resolve(m.manifest)...)
		if err != nil {
			m.log.Error().Err(err).Str("group", g.Name).Msg("prefetch closure")
			continue
		}
		queued := 0
		for _, b := range bs {
			st := m.states[b.Name]
			if st == nil || st.isCached() || st.transfer != nil {
				continue
			}
			if st.lastError == DownloadFailed || st.lastError == InvalidBundle || st.waiting(now, m.retryInterval) {
				continue
			}
			m.enqueue(st)
			queued++
		}
		if queued > 0 {
			m.log.Debug().Str("group", g.Name).Int("queued", queued).Msg("prefetch")
			m.emit(EventPrefetch, "", map[string]any{"group": g.Name, "queued": queued})
			return
		}
	}
	m.prefetchDone = true
}

// ResetPrefetch re-arms the idle prefetch policy after it has run out of work.
func (m *Manager) ResetPrefetch() {
	m.mu.Lock()
	m.prefetchDone = false
	m.mu.Unlock()
}
