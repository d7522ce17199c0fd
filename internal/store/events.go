package store

import (
	"sync"

	"github.com/dukaanhq/dukaan-core/internal/outbox"
)

// Event describes one committed mutation on a collection.
type Event struct {
	Collection string    `json:"collection"`
	Op         outbox.Op `json:"op"`
	RecordID   string    `json:"recordId"`
}

// Bus fans committed mutations out to collection subscribers. Any component
// that calls Add/Update/Remove triggers a notification to all active
// subscribers of that collection, which is how UI views stay converged
// without polling.
//
// Publishing never blocks: a subscriber that stops draining its channel
// loses events rather than stalling writers.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan Event
	next int
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]chan Event)}
}

// Subscribe registers for events on a collection. The returned cancel
// function must be called to release the subscription; after cancel the
// channel is closed.
func (b *Bus) Subscribe(collection string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 64)
	if b.subs[collection] == nil {
		b.subs[collection] = make(map[int]chan Event)
	}
	id := b.next
	b.next++
	b.subs[collection][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[collection][id]; ok {
			delete(b.subs[collection], id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of its collection.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[ev.Collection] {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop rather than block the writer.
		}
	}
}
