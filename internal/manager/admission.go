package manager

import (
	"context"
	"time"

	"bundled/internal/netstate"
)

// Tick runs one scheduling pass: it launches downloads for queued bundles up
// to the transfer cap in FIFO order, skipping entries in flight or in backoff.
// When nothing is queued or loading and the idle grace has passed, it lets the
// prefetch policy queue more work.
func (m *Manager) Tick() {
	reach := m.conn.Reachability()
	m.mu.Lock()
	defer m.unlock()
	if m.manifest == nil || m.closed {
		return
	}
	now := m.now()
	if m.activeLoads > 0 {
		m.deferIdle(now, m.idleGrace)
	}
	if len(m.queue) > 0 {
		for _, st := range m.queue {
			if st.requested {
				m.deferIdle(now, m.idleGrace)
				break
			}
		}
		m.schedule(now, reach)
		return
	}
	if m.activeLoads == 0 && !now.Before(m.idleAt) {
		m.prefetchIdle(reach)
	}
}

func (m *Manager) schedule(now time.Time, reach netstate.Reachability) {
	slots := m.maxTransfers - m.activeDownloads()
	candidates := make([]*BundleState, 0, len(m.queue))
	for _, st := range m.queue {
		if st.transfer == nil && !st.waiting(now, m.retryInterval) {
			candidates = append(candidates, st)
		}
	}
	for _, st := range candidates {
		if st.isCached() {
			// Satisfied while queued; a waiting requester gets its load now.
			m.dequeue(st)
			if st.requested && !st.isReady() {
				m.startLoadLocked(st)
			}
			continue
		}
		if slots <= 0 {
			continue
		}
		if reach == netstate.NotReachable {
			m.failLocked(st, NoInternetConnection, now, errOffline)
			continue
		}
		m.startDownloadLocked(st, now)
		slots--
	}
}

func (m *Manager) startDownloadLocked(st *BundleState, now time.Time) {
	ctx, cancel := context.WithCancel(m.ctx)
	t := newTransfer(kindDownload, cancel, now)
	st.transfer = t
	st.clearError()
	m.wg.Add(1)
	go m.runDownload(ctx, st, t)
}

// abandonLocked detaches the current transfer of st. The goroutine keeps
// running until it notices cancellation; its commit is then ignored.
func (m *Manager) abandonLocked(st *BundleState) {
	t := st.transfer
	if t == nil {
		return
	}
	t.cancel()
	if t.kind == kindLoad {
		m.activeLoads--
	}
	st.transfer = nil
}

// failLocked records a non-content failure. Passive entries leave the queue;
// requested ones stay for a retry once the backoff window passes.
func (m *Manager) failLocked(st *BundleState, kind ErrorKind, now time.Time, err error) {
	st.setError(kind, now)
	m.errorsTotal++
	if !st.requested {
		m.dequeue(st)
	}
	m.log.Warn().Err(err).Str("bundle", st.bundle.Name).Str("reason", kind.String()).Msg("bundle transfer failed")
	m.emit(EventDownloadError, st.bundle.Name, map[string]any{"reason": kind.String(), "error": err.Error()})
}

// invalidLocked records content that could not be materialized. The bad copy
// is dropped and a requested bundle is demoted to a cache-only retry so it
// never sits requested with nothing loading.
func (m *Manager) invalidLocked(st *BundleState, now time.Time, err error) {
	b := st.bundle
	st.setError(InvalidBundle, now)
	m.errorsTotal++
	wasRequested := st.requested
	st.requested = false
	if !b.Included {
		if st.cached {
			if derr := m.store.Delete(b); derr != nil {
				m.log.Error().Err(derr).Str("bundle", b.Name).Msg("delete invalid bundle")
			}
			st.cached = false
		}
		if wasRequested {
			m.enqueue(st)
		} else {
			m.dequeue(st)
		}
	}
	m.log.Warn().Err(err).Str("bundle", b.Name).Bool("requeued", wasRequested && !b.Included).Msg("invalid bundle")
	m.emit(EventDownloadError, b.Name, map[string]any{"reason": InvalidBundle.String(), "error": err.Error()})
}

// deferIdle pushes the idle deadline to at least now+d.
func (m *Manager) deferIdle(now time.Time, d time.Duration) {
	if at := now.Add(d); at.After(m.idleAt) {
		m.idleAt = at
	}
}
