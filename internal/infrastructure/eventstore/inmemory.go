package eventstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/lllypuk/specd/internal/application/appcore"
	"github.com/lllypuk/specd/internal/domain/event"
)

// InMemoryEventStore implements appcore.EventStore in memory, for tests and
// mock wiring mode. It honors the same guarantees as the MongoDB store:
// expected-version appends, gapless per-aggregate order and a stable global
// append order.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events map[string][]event.DomainEvent
	global []appcore.RecordedEvent
}

// NewInMemoryEventStore creates a new in-memory event store.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		events: make(map[string][]event.DomainEvent),
	}
}

// AppendEvents saves events for an aggregate under the expected-version guard.
func (s *InMemoryEventStore) AppendEvents(
	_ context.Context,
	aggregateID string,
	events []event.DomainEvent,
	expectedVersion int,
) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Sequence numbers are gapless, so the count is the current version.
	currentVersion := len(s.events[aggregateID])
	if currentVersion != expectedVersion {
		return appcore.ErrConcurrencyConflict
	}

	s.events[aggregateID] = append(s.events[aggregateID], events...)

	for _, evt := range events {
		s.global = append(s.global, appcore.RecordedEvent{
			Cursor:  int64(len(s.global) + 1),
			EventID: uuid.New().String(),
			Event:   evt,
		})
	}

	return nil
}

// LoadEvents loads all events for an aggregate.
func (s *InMemoryEventStore) LoadEvents(
	_ context.Context,
	aggregateID string,
) ([]event.DomainEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, exists := s.events[aggregateID]
	if !exists {
		return nil, appcore.ErrAggregateNotFound
	}

	// Copy to avoid races with concurrent appends
	result := make([]event.DomainEvent, len(events))
	copy(result, events)

	return result, nil
}

// LoadEventsUpTo loads events with sequence number <= maxVersion.
func (s *InMemoryEventStore) LoadEventsUpTo(
	_ context.Context,
	aggregateID string,
	maxVersion int,
) ([]event.DomainEvent, error) {
	if maxVersion < 1 {
		return nil, appcore.ErrInvalidVersion
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	events, exists := s.events[aggregateID]
	if !exists {
		return nil, appcore.ErrAggregateNotFound
	}

	result := make([]event.DomainEvent, 0, maxVersion)
	for _, evt := range events {
		if evt.Version() > maxVersion {
			break
		}
		result = append(result, evt)
	}

	return result, nil
}

// GetVersion returns the current aggregate version, 0 if absent.
func (s *InMemoryEventStore) GetVersion(
	_ context.Context,
	aggregateID string,
) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.events[aggregateID]), nil
}

// ReadAllSince returns events across all aggregates in global append order.
func (s *InMemoryEventStore) ReadAllSince(
	_ context.Context,
	afterCursor int64,
	limit int,
) ([]appcore.RecordedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []appcore.RecordedEvent
	for _, rec := range s.global {
		if rec.Cursor <= afterCursor {
			continue
		}
		result = append(result, rec)
		if limit > 0 && len(result) >= limit {
			break
		}
	}

	return result, nil
}

// Clear removes all events (for tests).
func (s *InMemoryEventStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = make(map[string][]event.DomainEvent)
	s.global = nil
}

// AllAggregateIDs returns the IDs of all stored aggregates (for tests).
func (s *InMemoryEventStore) AllAggregateIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.events))
	for id := range s.events {
		ids = append(ids, id)
	}

	return ids
}

// Ensure InMemoryEventStore implements appcore.EventStore
var _ appcore.EventStore = (*InMemoryEventStore)(nil)
