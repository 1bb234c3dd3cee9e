package manager

import (
	"time"

	"bundled/internal/manifest"
)

// Cache queues b and its dependencies for background download without loading
// them. It reports whether all of them were already cached.
func (m *Manager) Cache(b *manifest.Bundle) bool { return m.CacheAll(b) }

// CacheAll is Cache over a set; the result is true only if every member and
// every dependency was already cached.
func (m *Manager) CacheAll(bs ...*manifest.Bundle) bool {
	m.mu.Lock()
	defer m.unlock()
	closure, ok := m.closureLocked(bs)
	if !ok {
		return false
	}
	m.foreground()
	all := true
	for _, st := range closure {
		if !m.cacheLocked(st) {
			all = false
		}
	}
	return all
}

func (m *Manager) cacheLocked(st *BundleState) bool {
	if st.isCached() {
		return true
	}
	m.enqueue(st)
	return false
}

// Request marks b and its dependencies as wanted in memory. It reports whether
// all of them were already ready; otherwise loads or downloads are started and
// the caller polls IsReady or DownloadState.
func (m *Manager) Request(b *manifest.Bundle) bool { return m.RequestAll(b) }

// RequestAll is Request over a set.
func (m *Manager) RequestAll(bs ...*manifest.Bundle) bool {
	m.mu.Lock()
	defer m.unlock()
	closure, ok := m.closureLocked(bs)
	if !ok {
		return false
	}
	now := m.foreground()
	all := true
	for _, st := range closure {
		if !m.requestLocked(st, now) {
			all = false
		}
	}
	return all
}

func (m *Manager) requestLocked(st *BundleState, now time.Time) bool {
	st.requested = true
	if st.isReady() {
		st.touch(now)
		m.markLoadedLocked(st)
		return true
	}
	if st.isCached() {
		if st.waiting(now, m.retryInterval) {
			// Tick starts the load once the backoff window has passed.
			m.enqueue(st)
		} else {
			m.startLoadLocked(st)
		}
		return false
	}
	m.enqueue(st)
	return false
}

// IsCached reports whether b is in the local cache, in the package or loaded.
func (m *Manager) IsCached(b *manifest.Bundle) bool { return m.IsCachedAll(b) }

// IsCachedAll is true when every member is cached.
func (m *Manager) IsCachedAll(bs ...*manifest.Bundle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.manifest == nil {
		return false
	}
	for _, b := range bs {
		st := m.stateOf(b)
		if st == nil || !st.isCached() {
			return false
		}
	}
	return true
}

// IsReady reports whether b is materialized in memory.
func (m *Manager) IsReady(b *manifest.Bundle) bool { return m.IsReadyAll(b) }

// IsReadyAll is true when every member is ready.
func (m *Manager) IsReadyAll(bs ...*manifest.Bundle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.manifest == nil {
		return false
	}
	for _, b := range bs {
		st := m.stateOf(b)
		if st == nil || !st.isReady() {
			return false
		}
	}
	return true
}

// DownloadState aggregates byte progress and error class over bs. Before a
// manifest exists it reports DownloadErrorNoBundles with 0 of 1 bytes.
func (m *Manager) DownloadState(bs ...*manifest.Bundle) DownloadState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.manifest == nil {
		return DownloadState{Status: DownloadErrorNoBundles, BytesAvailable: 0, BytesTotal: 1}
	}
	var ds DownloadState
	offline, failed, complete := false, false, true
	for _, b := range bs {
		st := m.stateOf(b)
		if st == nil {
			continue
		}
		complete = complete && st.isCached()
		ds.BytesTotal += st.bundle.Size
		ds.BytesAvailable += st.availableBytes()
		switch st.lastError {
		case ErrorNone:
		case NoInternetConnection:
			offline = true
		default:
			failed = true
		}
	}
	switch {
	case complete:
		ds.Status = DownloadCached
	case offline:
		ds.Status = DownloadErrorNoInternetConnection
	case failed:
		ds.Status = DownloadErrorDownloadFailed
	default:
		ds.Status = DownloadDownloading
	}
	return ds
}

// CacheFor resolves r against the manifest and calls CacheAll.
func (m *Manager) CacheFor(r Resolver) bool {
	bs, ok := m.resolve(r)
	return ok && m.CacheAll(bs...)
}

// RequestFor resolves r against the manifest and calls RequestAll.
func (m *Manager) RequestFor(r Resolver) bool {
	bs, ok := m.resolve(r)
	return ok && m.RequestAll(bs...)
}

// IsCachedFor resolves r against the manifest and calls IsCachedAll.
func (m *Manager) IsCachedFor(r Resolver) bool {
	bs, ok := m.resolve(r)
	return ok && m.IsCachedAll(bs...)
}

// IsReadyFor resolves r against the manifest and calls IsReadyAll.
func (m *Manager) IsReadyFor(r Resolver) bool {
	bs, ok := m.resolve(r)
	return ok && m.IsReadyAll(bs...)
}

// DownloadStateFor resolves r against the manifest and calls DownloadState.
func (m *Manager) DownloadStateFor(r Resolver) DownloadState {
	bs, _ := m.resolve(r)
	return m.DownloadState(bs...)
}

// LoadAsset requests the bundle owning asset and returns its handle once ready.
// The bool is false while the owner is still on its way or when no bundle
// owns the asset.
func (m *Manager) LoadAsset(asset string) (Handle, bool) {
	m.mu.Lock()
	if m.manifest == nil {
		m.mu.Unlock()
		return nil, false
	}
	owner := m.manifest.FindAssetOwner(asset)
	m.mu.Unlock()
	if owner == nil {
		return nil, false
	}
	if !m.Request(owner) {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stateOf(owner)
	if st == nil || st.handle == nil {
		return nil, false
	}
	return st.handle, true
}

// HasDownloaded reports whether the named bundle is cached.
func (m *Manager) HasDownloaded(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.states[name]
	return st != nil && st.isCached()
}

// resolve runs r outside the lock; manifests are immutable.
func (m *Manager) resolve(r Resolver) ([]*manifest.Bundle, bool) {
	mf := m.Manifest()
	if mf == nil || r == nil {
		return nil, mf != nil
	}
	return r(mf), true
}

// closureLocked maps bs to states, dependencies first. It fails before a
// manifest is set.
func (m *Manager) closureLocked(bs []*manifest.Bundle) ([]*BundleState, bool) {
	if m.manifest == nil {
		return nil, false
	}
	roots := make([]*manifest.Bundle, 0, len(bs))
	for _, b := range bs {
		if st := m.stateOf(b); st != nil {
			roots = append(roots, st.bundle)
		}
	}
	all, err := m.manifest.WithDependencies(roots...)
	if err != nil {
		m.log.Error().Err(err).Msg("dependency closure")
		return nil, false
	}
	out := make([]*BundleState, 0, len(all))
	for _, b := range all {
		out = append(out, m.states[b.Name])
	}
	return out, true
}

// foreground pushes the idle deadline out after caller activity.
func (m *Manager) foreground() time.Time {
	now := m.now()
	m.deferIdle(now, m.idleGrace)
	return now
}
