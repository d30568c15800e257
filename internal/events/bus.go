package events

import (
	"sync"
	"time"
)

// Event represents a system event with typed data
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// Handler is a subscriber callback. Handlers must not block; slow consumers
// should hand off to their own goroutine.
type Handler func(Event)

// Bus is an in-process publish/subscribe event bus. Subscriptions are
// per-event-type plus a wildcard list that receives everything.
type Bus struct {
	mu        sync.RWMutex
	handlers  map[EventType][]Handler
	wildcards []Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// SubscribeAll registers a handler that receives every event
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcards = append(b.wildcards, h)
}

// Emit publishes an event to all matching handlers
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	typed := make([]Handler, len(b.handlers[eventType]))
	copy(typed, b.handlers[eventType])
	wild := make([]Handler, len(b.wildcards))
	copy(wild, b.wildcards)
	b.mu.RUnlock()

	for _, h := range typed {
		h(event)
	}
	for _, h := range wild {
		h(event)
	}
}
