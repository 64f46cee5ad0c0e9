// Package appcore provides core application interfaces and shared errors.
// Interfaces are declared on the consumer side following Go idioms.
package appcore

import (
	"context"

	"github.com/lllypuk/specd/internal/domain/event"
)

// RecordedEvent pairs a stored event with its position in the stable global
// append order. Cursor ordering is independent of per-aggregate sequence
// numbers and is used only for projection catch-up and rebuild.
type RecordedEvent struct {
	// Cursor is the global append position of the event. Strictly increasing
	// across the whole store.
	Cursor int64

	// EventID uniquely identifies the stored fact.
	EventID string

	Event event.DomainEvent
}

// EventStore is the append-only fact log. It owns durability and the single
// concurrency control point of the system: the expected-version guard.
type EventStore interface {
	// AppendEvents atomically verifies that the aggregate's current version
	// equals expectedVersion (0 for a new aggregate) and appends the events
	// in a single durable transaction. On a failed check nothing is written
	// and ErrConcurrencyConflict is returned.
	AppendEvents(ctx context.Context, aggregateID string, events []event.DomainEvent, expectedVersion int) error

	// LoadEvents returns all events for an aggregate in ascending sequence
	// order. Returns ErrAggregateNotFound if the aggregate has no events.
	LoadEvents(ctx context.Context, aggregateID string) ([]event.DomainEvent, error)

	// LoadEventsUpTo returns events with sequence number <= maxVersion, in
	// ascending order. Used for historical folds.
	LoadEventsUpTo(ctx context.Context, aggregateID string, maxVersion int) ([]event.DomainEvent, error)

	// GetVersion returns the current aggregate version, 0 if absent.
	GetVersion(ctx context.Context, aggregateID string) (int, error)

	// ReadAllSince returns up to limit events across all aggregates with a
	// global cursor greater than afterCursor, in stable global append order.
	ReadAllSince(ctx context.Context, afterCursor int64, limit int) ([]RecordedEvent, error)
}
