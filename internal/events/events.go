// Package events provides the in-process pub/sub used by the slot registry
// and booking ledger to notify rendering layers of state changes.
package events

import (
	"sync"
	"time"
)

// Topics published by the core.
const (
	TopicSlotsReplaced    = "slots.replaced"
	TopicSlotOccupancy    = "slots.occupancy"
	TopicSlotRemoved      = "slots.removed"
	TopicBookingsReplaced = "bookings.replaced"
	TopicBookingUpserted  = "bookings.upserted"
	TopicBookingCancelled = "bookings.cancelled"
)

// Event is a lightweight change notification. EntityID identifies the slot or
// booking concerned; it is empty for whole-collection replacements.
type Event struct {
	Topic      string
	EntityID   string
	OccurredAt time.Time
}

// Handler reacts to an event. Handlers run synchronously on the publishing
// goroutine; subscribers that need isolation fan out themselves.
type Handler func(event Event)

// Bus is an in-process publish/subscribe hub.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], handler)
}

// Publish notifies all subscribers of the topic.
func (b *Bus) Publish(topic, entityID string) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[topic]...)
	b.mu.RUnlock()

	event := Event{Topic: topic, EntityID: entityID, OccurredAt: time.Now()}
	for _, handler := range handlers {
		handler(event)
	}
}
