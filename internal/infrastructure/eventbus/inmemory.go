package eventbus

import (
	"context"
	"sync"

	"github.com/lllypuk/specd/internal/domain/event"
)

// InMemoryBus implements event.Bus in process, for tests and mock wiring
// mode. Handlers run synchronously in Publish.
type InMemoryBus struct {
	mu        sync.RWMutex
	handlers  map[string][]EventHandler
	published []event.DomainEvent
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]EventHandler),
	}
}

// Publish dispatches the event to all registered handlers synchronously.
func (b *InMemoryBus) Publish(ctx context.Context, evt event.DomainEvent) error {
	b.mu.Lock()
	b.published = append(b.published, evt)
	handlers := append([]EventHandler(nil), b.handlers[evt.EventType()]...)
	b.mu.Unlock()

	for _, handler := range handlers {
		if err := handler(ctx, evt); err != nil {
			return err
		}
	}

	return nil
}

// Subscribe registers an event handler for a specific event type.
func (b *InMemoryBus) Subscribe(eventType string, handler EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	return nil
}

// Published returns all events published so far (for tests).
func (b *InMemoryBus) Published() []event.DomainEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]event.DomainEvent, len(b.published))
	copy(result, b.published)

	return result
}

// Clear removes all published events and handlers (for tests).
func (b *InMemoryBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published = nil
	b.handlers = make(map[string][]EventHandler)
}

// Ensure InMemoryBus implements event.Bus
var _ event.Bus = (*InMemoryBus)(nil)
