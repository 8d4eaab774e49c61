package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler receives events delivered through the bus.
type Handler func(event *Event)

// Bus is a synchronous in-process publish/subscribe dispatcher.
// Handlers run on the emitting goroutine, so they must be fast and
// must not block; anything slow belongs behind a buffered channel
// on the subscriber's side (the SSE and websocket streams do this).
type Bus struct {
	mu          sync.RWMutex
	handlers    map[EventType][]Handler
	allHandlers map[int]Handler
	nextID      int
	log         zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers:    make(map[EventType][]Handler),
		allHandlers: make(map[int]Handler),
		log:         log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for a single event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll registers a handler for every event type and returns a
// function that removes the subscription. Streaming handlers call it on
// client disconnect so per-connection subscriptions do not pile up.
func (b *Bus) SubscribeAll(handler Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.allHandlers[id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.allHandlers, id)
	}
}

// Emit publishes an event to all matching handlers.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	typed := make([]Handler, len(b.handlers[eventType]))
	copy(typed, b.handlers[eventType])
	all := make([]Handler, 0, len(b.allHandlers))
	for _, h := range b.allHandlers {
		all = append(all, h)
	}
	b.mu.RUnlock()

	for _, handler := range typed {
		b.dispatch(handler, event)
	}
	for _, handler := range all {
		b.dispatch(handler, event)
	}
}

// dispatch invokes a handler, recovering panics so one broken
// subscriber cannot take down the emitting goroutine.
func (b *Bus) dispatch(handler Handler, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Interface("panic", r).
				Str("event_type", string(event.Type)).
				Msg("Event handler panicked")
		}
	}()
	handler(event)
}
