package manager

import (
	"context"
	"time"
)

// Run drives Tick every TickInterval until ctx is done, then closes the
// manager. It returns nil on cancellation.
func (m *Manager) Run(ctx context.Context) error {
	t := time.NewTicker(m.tickInterval)
	defer t.Stop()
	m.Tick()
	for {
		select {
		case <-ctx.Done():
			m.Close()
			return nil
		case <-t.C:
			m.Tick()
		}
	}
}

// Close cancels in-flight transfers, waits for them, persists usage metadata
// and releases every loaded handle. It is safe to call more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.cancel()
		m.mu.Unlock()
		m.wg.Wait()
		m.saveUsage()

		m.mu.Lock()
		for _, st := range m.states {
			st.transfer = nil
			if st.handle != nil {
				m.closers = append(m.closers, st.handle)
				st.handle = nil
			}
		}
		m.loaded = nil
		m.activeLoads = 0
		m.unlock()
	})
}
