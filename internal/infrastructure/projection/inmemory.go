package projection

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lllypuk/specd/internal/domain/event"
	"github.com/lllypuk/specd/internal/domain/spec"
	"github.com/lllypuk/specd/internal/domain/uuid"
)

// InMemoryStore implements Store in memory, for tests and mock wiring mode.
// It shares foldEvent with the MongoDB store so both apply facts identically.
type InMemoryStore struct {
	mu     sync.RWMutex
	models map[string]*SpecReadModel
}

// NewInMemoryStore creates a new in-memory projection store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		models: make(map[string]*SpecReadModel),
	}
}

// Apply folds one fact into the read model, idempotently.
func (s *InMemoryStore) Apply(_ context.Context, evt event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := evt.Version()
	current := s.models[evt.AggregateID()]

	if current != nil {
		if seq <= current.LastAppliedSeq {
			return nil
		}
		if seq != current.LastAppliedSeq+1 {
			return fmt.Errorf("%w: read model at %d, fact at %d", ErrSequenceGap, current.LastAppliedSeq, seq)
		}
	} else if seq != 1 {
		return fmt.Errorf("%w: no read model, fact at %d", ErrSequenceGap, seq)
	}

	next, err := foldEvent(current, evt)
	if err != nil {
		return err
	}

	s.models[next.ID] = next

	return nil
}

// Get returns the read model for a spec id.
func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (*SpecReadModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	model, exists := s.models[id.String()]
	if !exists {
		return nil, ErrNotFound
	}

	copied := *model
	return &copied, nil
}

// GetByName returns the read model with the given spec name.
func (s *InMemoryStore) GetByName(_ context.Context, name string) (*SpecReadModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, model := range s.models {
		if model.Name == name {
			copied := *model
			return &copied, nil
		}
	}

	return nil, ErrNotFound
}

// List returns read models matching the filter, newest-updated first.
func (s *InMemoryStore) List(_ context.Context, filter ListFilter) ([]*SpecReadModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.match(filter)

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return make([]*SpecReadModel, 0), nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

// Count returns the number of read models matching the filter.
func (s *InMemoryStore) Count(_ context.Context, filter ListFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.match(filter))), nil
}

// LastAppliedSeq returns the last applied sequence for an aggregate.
func (s *InMemoryStore) LastAppliedSeq(_ context.Context, id uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	model, exists := s.models[id.String()]
	if !exists {
		return 0, nil
	}

	return model.LastAppliedSeq, nil
}

// Reset discards all read models.
func (s *InMemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.models = make(map[string]*SpecReadModel)

	return nil
}

// match must be called with the lock held.
func (s *InMemoryStore) match(filter ListFilter) []*SpecReadModel {
	matched := make([]*SpecReadModel, 0, len(s.models))
	for _, model := range s.models {
		if filter.State != nil {
			if model.State != filter.State.String() {
				continue
			}
		} else if model.State == spec.StateDeleted.String() {
			continue
		}
		copied := *model
		matched = append(matched, &copied)
	}
	return matched
}

// Ensure InMemoryStore implements Store
var _ Store = (*InMemoryStore)(nil)
