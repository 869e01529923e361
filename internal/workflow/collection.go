package workflow

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/events"
)

// ErrNotFound is wrapped by every store error raised for an unknown entity id.
var ErrNotFound = errors.New("not found")

// ErrDuplicateID indicates an insert collided with an existing entity id.
var ErrDuplicateID = errors.New("duplicate id")

// CollectionConfig describes how a Collection stores and announces entities.
type CollectionConfig[E any] struct {
	Topic string
	Hub   *events.Hub
	Clock func() time.Time
	// Clone detaches slices and maps so callers cannot alias stored entities.
	Clone func(E) E
}

// Collection is an insertion-ordered, mutex-guarded map of entities keyed by id.
// Every committed mutation publishes one event after the lock is released.
type Collection[E any] struct {
	mu    sync.RWMutex
	order []string
	items map[string]E
	topic string
	hub   *events.Hub
	clock func() time.Time
	clone func(E) E
}

// NewCollection returns an empty collection.
func NewCollection[E any](cfg CollectionConfig[E]) *Collection[E] {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	clone := cfg.Clone
	if clone == nil {
		clone = func(entity E) E { return entity }
	}
	return &Collection[E]{
		items: make(map[string]E),
		topic: cfg.Topic,
		hub:   cfg.Hub,
		clock: clock,
		clone: clone,
	}
}

// Insert adds a new entity under id.
func (c *Collection[E]) Insert(id string, entity E) error {
	c.mu.Lock()
	if _, exists := c.items[id]; exists {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	c.items[id] = c.clone(entity)
	c.order = append(c.order, id)
	c.mu.Unlock()

	c.publish(events.KindCreated, id)
	return nil
}

// Has reports whether id is present.
func (c *Collection[E]) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[id]
	return ok
}

// Mutate applies fn to the stored entity. A non-nil error from fn discards the change.
func (c *Collection[E]) Mutate(id string, kind events.Kind, fn func(*E) error) error {
	c.mu.Lock()
	current, ok := c.items[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	working := c.clone(current)
	if err := fn(&working); err != nil {
		c.mu.Unlock()
		return err
	}
	c.items[id] = working
	c.mu.Unlock()

	c.publish(kind, id)
	return nil
}

// Delete removes id from the collection.
func (c *Collection[E]) Delete(id string) error {
	c.mu.Lock()
	if _, ok := c.items[id]; !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(c.items, id)
	for index, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:index], c.order[index+1:]...)
			break
		}
	}
	c.mu.Unlock()

	c.publish(events.KindDeleted, id)
	return nil
}

// ReplaceAll swaps the whole collection for entities, keyed by idOf.
func (c *Collection[E]) ReplaceAll(entities []E, idOf func(E) string) {
	items := make(map[string]E, len(entities))
	order := make([]string, 0, len(entities))
	for _, entity := range entities {
		id := idOf(entity)
		if _, seen := items[id]; !seen {
			order = append(order, id)
		}
		items[id] = c.clone(entity)
	}

	c.mu.Lock()
	c.items = items
	c.order = order
	c.mu.Unlock()

	c.publish(events.KindReloaded, "")
}

// Get returns a detached copy of the entity stored under id.
func (c *Collection[E]) Get(id string) (E, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entity, ok := c.items[id]
	if !ok {
		var zero E
		return zero, false
	}
	return c.clone(entity), true
}

// List returns every entity in insertion order.
func (c *Collection[E]) List() []E {
	return c.Filter(nil)
}

// Filter returns entities accepted by keep, in insertion order. A nil keep accepts all.
func (c *Collection[E]) Filter(keep func(E) bool) []E {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]E, 0, len(c.order))
	for _, id := range c.order {
		entity := c.items[id]
		if keep != nil && !keep(entity) {
			continue
		}
		result = append(result, c.clone(entity))
	}
	return result
}

// Len returns the number of stored entities.
func (c *Collection[E]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Subscribe registers listener on the collection's hub.
func (c *Collection[E]) Subscribe(listener events.Listener) func() {
	if c.hub == nil {
		return func() {}
	}
	return c.hub.Subscribe(listener)
}

// Now exposes the collection clock so stores stamp entities consistently.
func (c *Collection[E]) Now() time.Time {
	return c.clock()
}

func (c *Collection[E]) publish(kind events.Kind, id string) {
	if c.hub == nil {
		return
	}
	c.hub.Publish(events.Event{
		Topic:    c.topic,
		Kind:     kind,
		EntityID: id,
		At:       c.clock().UTC(),
	})
}
