package manager

import (
	"encoding/json"
	"time"

	"github.com/spf13/afero"
)

type usageRecord struct {
	LastUsedUnix int64 `json:"last_used_unix"`
	Requested    bool  `json:"requested"`
}

func (m *Manager) loadUsage() {
	if m.usagePath == "" {
		return
	}
	b, err := afero.ReadFile(m.usageFS, m.usagePath)
	if err != nil {
		return
	}
	var data map[string]usageRecord
	if err := json.Unmarshal(b, &data); err != nil {
		m.log.Warn().Err(err).Str("path", m.usagePath).Msg("ignore unreadable usage metadata")
		return
	}
	m.usage = data
}

// restoreUsage applies a persisted record. A bundle that was requested last
// session but is no longer cached is fetched again in the background.
func (m *Manager) restoreUsage(st *BundleState, rec usageRecord) {
	if rec.LastUsedUnix > 0 {
		st.lastUsed = time.Unix(rec.LastUsedUnix, 0)
	}
	if rec.Requested && !st.isCached() {
		m.enqueue(st)
	}
}

func (m *Manager) saveUsage() {
	if m.usagePath == "" {
		return
	}
	m.mu.Lock()
	snap := make(map[string]usageRecord)
	for name, st := range m.states {
		if st.lastUsed.IsZero() && !st.requested {
			continue
		}
		rec := usageRecord{Requested: st.requested}
		if !st.lastUsed.IsZero() {
			rec.LastUsedUnix = st.lastUsed.Unix()
		}
		snap[name] = rec
	}
	m.mu.Unlock()
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return
	}
	if err := afero.WriteFile(m.usageFS, m.usagePath, b, 0o644); err != nil {
		m.log.Warn().Err(err).Str("path", m.usagePath).Msg("save usage metadata")
	}
}
