package server

import (
	"context"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/rentdesk/internal/events"
)

const (
	realtimeEventHeartbeat = "heartbeat"
	realtimeSourceBackend  = "rentdesk-api"
	realtimeBufferSize     = 32
)

// RealtimeMessage is one entry on the change feed.
type RealtimeMessage struct {
	Topic     string    `json:"topic"`
	EventType string    `json:"event"`
	EntityID  string    `json:"entity_id,omitempty"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// RealtimeDispatcher fans store events out to connected feed clients.
// Slow clients drop messages rather than blocking publishers.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[int64]*realtimeSubscriber),
		bufferSize:  realtimeBufferSize,
	}
}

// Subscribe registers a client until ctx is done or the returned cleanup runs.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context) (<-chan RealtimeMessage, func()) {
	subscriber := &realtimeSubscriber{stream: make(chan RealtimeMessage, d.bufferSize)}
	d.mu.Lock()
	d.nextID++
	subscriber.id = d.nextID
	d.subscribers[subscriber.id] = subscriber
	d.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.subscribers, subscriber.id)
			d.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.EventType == "" {
		return
	}
	d.mu.RLock()
	copies := make([]*realtimeSubscriber, 0, len(d.subscribers))
	for _, subscriber := range d.subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

// Forward is an events.Listener that relays store events to the feed.
func (d *RealtimeDispatcher) Forward(event events.Event) {
	d.Publish(RealtimeMessage{
		Topic:     event.Topic,
		EventType: string(event.Kind),
		EntityID:  event.EntityID,
		Source:    realtimeSourceBackend,
		Timestamp: event.At,
	})
}

// SubscriberCount reports connected clients.
func (d *RealtimeDispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}
