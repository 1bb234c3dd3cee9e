package manager

import (
	"bundled/pkg/types"
)

// Info returns the API view of one bundle.
func (m *Manager) Info(name string) (types.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.manifest == nil {
		return types.Bundle{}, ErrNoBundles
	}
	st := m.states[name]
	if st == nil {
		return types.Bundle{}, ErrBundleNotFound(name)
	}
	return m.viewLocked(st), nil
}

// Infos returns every bundle in catalog order.
func (m *Manager) Infos() ([]types.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.manifest == nil {
		return nil, ErrNoBundles
	}
	out := make([]types.Bundle, 0, m.manifest.Len())
	for _, b := range m.manifest.Bundles() {
		out = append(out, m.viewLocked(m.states[b.Name]))
	}
	return out, nil
}

func (m *Manager) viewLocked(st *BundleState) types.Bundle {
	b := st.bundle
	v := types.Bundle{
		Name:           b.Name,
		Version:        b.Version,
		Size:           b.Size,
		Included:       b.Included,
		IsScene:        b.IsScene,
		Dependencies:   append([]string(nil), b.Dependencies...),
		State:          st.status().String(),
		Requested:      st.requested,
		Queued:         m.queued(st),
		AvailableBytes: st.availableBytes(),
		LastError:      st.lastError.String(),
	}
	if !st.lastErrorAt.IsZero() {
		v.LastErrorUnix = st.lastErrorAt.Unix()
	}
	if !st.lastUsed.IsZero() {
		v.LastUsedUnix = st.lastUsed.Unix()
	}
	return v
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp := types.StatusResponse{
		ManifestReady:   m.manifest != nil,
		States:          make(map[string]int),
		Queue:           names(m.queue),
		Loaded:          names(m.loaded),
		ActiveTransfers: m.activeDownloads(),
		ActiveLoads:     m.activeLoads,
		MaxTransfers:    m.maxTransfers,
		MaxLoaded:       m.maxLoaded,
		DownloadsTotal:  m.downloadsTotal,
		ErrorsTotal:     m.errorsTotal,
		LoadsTotal:      m.loadsTotal,
		EvictionsTotal:  m.evictionsTotal,
		UptimeSeconds:   int64(m.now().Sub(m.startTime).Seconds()),
	}
	if m.manifest != nil {
		resp.BundleCount = m.manifest.Len()
	}
	for _, st := range m.states {
		resp.States[st.status().String()]++
	}
	return resp
}
