package manager

import (
	"context"
	"time"

	"bundled/internal/fetch"
	"bundled/internal/netstate"
)

// runDownload fetches one bundle, verifies and stores it, and materializes it
// in the same task when the bundle is requested.
func (m *Manager) runDownload(ctx context.Context, st *BundleState, t *transfer) {
	defer m.wg.Done()
	defer t.cancel()
	b := st.bundle
	url := fetch.BundleURL(m.baseURL, b.Name, b.Version)
	log := m.log.With().Str("bundle", b.Name).Str("transfer_id", t.id).Logger()
	log.Debug().Str("url", url).Msg("download start")

	data, err := m.fetcher.Get(ctx, url, func(read, total int64) {
		if total <= 0 {
			total = b.Size
		}
		if total > 0 {
			t.setProgress(float64(read) / float64(total))
		}
	})
	if err == nil {
		err = verifyContent(b, data)
	}
	if err != nil {
		m.commitDownloadError(st, t, err)
		return
	}

	if !m.commitDownload(st, t, data) {
		return
	}
	log.Debug().Dur("dur", t.age(m.now())).Msg("download complete, loading")
	h, lerr := m.loader.Load(b, data)
	m.commitLoad(st, t, h, lerr)
}

// commitDownload stores data and reports whether the caller should go on to
// materialize it.
func (m *Manager) commitDownload(st *BundleState, t *transfer, data []byte) bool {
	m.mu.Lock()
	defer m.unlock()
	if st.transfer != t {
		return false
	}
	now := m.now()
	b := st.bundle
	if err := m.store.Put(b, data); err != nil {
		st.transfer = nil
		m.failLocked(st, DownloadFailed, now, err)
		return false
	}
	st.cached = true
	t.setProgress(1)
	m.downloadsTotal++
	m.emit(EventBundleCached, b.Name, map[string]any{"bytes": len(data), "transfer_id": t.id, "dur": t.age(now).String()})
	if st.requested {
		return true
	}
	st.transfer = nil
	m.dequeue(st)
	m.deferIdle(now, m.idleShortGrace)
	return false
}

func (m *Manager) commitDownloadError(st *BundleState, t *transfer, err error) {
	kind := m.classify(err)
	m.mu.Lock()
	defer m.unlock()
	if st.transfer != t || m.closed {
		return
	}
	st.transfer = nil
	now := m.now()
	if kind == InvalidBundle {
		m.invalidLocked(st, now, err)
		return
	}
	m.failLocked(st, kind, now, err)
}

// classify maps a transfer failure to an ErrorKind. Connectivity is checked
// after the failure so a dropped link reads as offline rather than a bad server.
func (m *Manager) classify(err error) ErrorKind {
	if IsIntegrity(err) {
		return InvalidBundle
	}
	if m.conn.Reachability() == netstate.NotReachable {
		return NoInternetConnection
	}
	return DownloadFailed
}

// age is how long the transfer has been running.
func (t *transfer) age(now time.Time) time.Duration { return now.Sub(t.started) }
