package manager

// Event names published by the manager.
const (
	EventBundleCached   = "bundle_cached"
	EventBundleReady    = "bundle_ready"
	EventDownloadError  = "download_error"
	EventBundleUnloaded = "bundle_unloaded"
	EventManifestSet    = "manifest_set"
	EventPrefetch       = "prefetch"
)

// Event represents a bundle lifecycle notification.
// Minimal and stable: name + bundle name and optional fields via key/values.
type Event struct {
	Name   string
	Bundle string
	Fields map[string]any
}

// EventPublisher receives events from the manager. Publish is called after the
// manager lock is released; implementations should be lightweight and must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MultiPublisher fans an event out to every publisher in order.
type MultiPublisher []EventPublisher

func (mp MultiPublisher) Publish(e Event) {
	for _, p := range mp {
		if p != nil {
			p.Publish(e)
		}
	}
}

// SetEventPublisher replaces the publisher; nil restores the no-op default.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		p = noopPublisher{}
	}
	m.publisher = p
}
