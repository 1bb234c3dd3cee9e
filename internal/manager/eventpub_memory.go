package manager

import (
	"slices"
	"sync"
)

// MemoryPublisher records events in order. It is used by tests and by
// embedders that poll for notifications instead of subscribing.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
	limit  int
}

// NewMemoryPublisher returns an unbounded recorder.
func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

// NewBoundedMemoryPublisher keeps only the most recent limit events.
func NewBoundedMemoryPublisher(limit int) *MemoryPublisher {
	return &MemoryPublisher{limit: limit}
}

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	if p.limit > 0 && len(p.events) > p.limit {
		p.events = slices.Delete(p.events, 0, len(p.events)-p.limit)
	}
}

// Events returns a copy of everything recorded so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}

// Named returns the recorded events with the given name.
func (p *MemoryPublisher) Named(name string) []Event {
	return p.filter(func(e Event) bool { return e.Name == name })
}

// ForBundle returns the recorded events about one bundle.
func (p *MemoryPublisher) ForBundle(bundle string) []Event {
	return p.filter(func(e Event) bool { return e.Bundle == bundle })
}

// Reset drops all recorded events.
func (p *MemoryPublisher) Reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

func (p *MemoryPublisher) filter(keep func(Event) bool) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, e := range p.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
