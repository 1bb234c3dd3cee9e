package manager

// enqueue appends st to the download queue unless it is already present.
func (m *Manager) enqueue(st *BundleState) {
	if indexOf(m.queue, st) < 0 {
		m.queue = append(m.queue, st)
	}
}

func (m *Manager) dequeue(st *BundleState) { m.queue = remove(m.queue, st) }

func (m *Manager) queued(st *BundleState) bool { return indexOf(m.queue, st) >= 0 }

// activeDownloads counts queued entries with a network transfer in flight.
func (m *Manager) activeDownloads() int {
	n := 0
	for _, st := range m.queue {
		if st.transfer != nil && st.transfer.kind == kindDownload {
			n++
		}
	}
	return n
}

// Queue returns the names of queued bundles in FIFO order.
func (m *Manager) Queue() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return names(m.queue)
}
