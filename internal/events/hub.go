package events

import (
	"slices"
	"sync"
	"time"
)

// Kind names the mutation that produced an event.
type Kind string

const (
	KindCreated       Kind = "created"
	KindStatusChanged Kind = "status_changed"
	KindUpdated       Kind = "updated"
	KindDeleted       Kind = "deleted"
	KindReloaded      Kind = "reloaded"
	KindSyncChanged   Kind = "sync_changed"
)

// Event describes a committed change to one store.
type Event struct {
	Topic    string
	Kind     Kind
	EntityID string
	At       time.Time
}

// Listener receives events synchronously on the publishing goroutine.
type Listener func(Event)

// Hub fans events out to registered listeners.
type Hub struct {
	mu        sync.RWMutex
	listeners map[int64]Listener
	nextID    int64
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{listeners: make(map[int64]Listener)}
}

// Subscribe registers listener and returns a func that removes it.
func (h *Hub) Subscribe(listener Listener) func() {
	if listener == nil {
		return func() {}
	}
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.listeners[id] = listener
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers the event to every listener in subscription order.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	if len(h.listeners) == 0 {
		h.mu.RUnlock()
		return
	}
	ids := make([]int64, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	copies := make(map[int64]Listener, len(ids))
	for _, id := range ids {
		copies[id] = h.listeners[id]
	}
	h.mu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		copies[id](event)
	}
}
