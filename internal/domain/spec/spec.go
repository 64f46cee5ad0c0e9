// Package spec contains the event-sourced Spec aggregate: the lifecycle state
// machine, fact definitions and the fold that derives current state from an
// ordered fact sequence.
package spec

import (
	"fmt"
	"time"

	"github.com/lllypuk/specd/internal/domain/errs"
	"github.com/lllypuk/specd/internal/domain/event"
	"github.com/lllypuk/specd/internal/domain/uuid"
)

const initialVersion = 1

// Aggregate is the Spec aggregate. State is never persisted directly: it is
// derived by folding the aggregate's facts in ascending sequence order.
// Command methods validate against current state and emit new facts; they
// perform no I/O.
type Aggregate struct {
	id uuid.UUID

	// Derived state (restored from events)
	name        string
	content     string
	description *string
	state       State
	createdAt   time.Time
	updatedAt   time.Time
	createdBy   string
	updatedBy   string

	// Event sourcing bookkeeping. version equals the sequence number of the
	// last applied fact; 0 means the aggregate does not exist yet.
	version           int
	uncommittedEvents []event.DomainEvent
}

// NewSpecAggregate creates an empty aggregate for the given id.
func NewSpecAggregate(id uuid.UUID) *Aggregate {
	return &Aggregate{
		id:                id,
		uncommittedEvents: make([]event.DomainEvent, 0),
	}
}

// Create births the spec. Valid only when no facts exist yet.
func (a *Aggregate) Create(name, content string, description *string, metadata event.Metadata) error {
	if a.version > 0 {
		return errs.ErrAlreadyExists
	}

	if err := ValidateName(name); err != nil {
		return err
	}
	if err := ValidateContent(content); err != nil {
		return err
	}

	a.apply(NewSpecCreated(a.id, name, content, description, metadata))

	return nil
}

// UpdateContent replaces the content in full. Requires the caller's expected
// version to match the current one (optimistic concurrency) and rejects
// updates to deleted specs.
func (a *Aggregate) UpdateContent(expectedVersion int, content string, description *string, metadata event.Metadata) error {
	if a.version == 0 {
		return errs.ErrNotFound
	}
	if a.state.IsTerminal() {
		return fmt.Errorf("%w: cannot update a %s spec", errs.ErrInvalidTransition, a.state)
	}
	if expectedVersion != a.version {
		return fmt.Errorf("%w: expected %d, current %d", errs.ErrVersionMismatch, expectedVersion, a.version)
	}
	if err := ValidateContent(content); err != nil {
		return err
	}

	a.apply(NewContentUpdated(a.id, a.version+1, content, description, metadata))

	return nil
}

// Publish transitions Draft -> Published. expectedVersion is optional; when
// given it must match the current version.
func (a *Aggregate) Publish(expectedVersion *int, metadata event.Metadata) error {
	if a.version == 0 {
		return errs.ErrNotFound
	}
	if expectedVersion != nil && *expectedVersion != a.version {
		return fmt.Errorf("%w: expected %d, current %d", errs.ErrVersionMismatch, *expectedVersion, a.version)
	}

	return a.transition(StatePublished, nil, metadata)
}

// Deprecate transitions Published -> Deprecated with a mandatory reason.
// A draft cannot be deprecated; it is simply deleted or abandoned.
func (a *Aggregate) Deprecate(reason string, metadata event.Metadata) error {
	if a.version == 0 {
		return errs.ErrNotFound
	}
	if !a.state.CanTransitionTo(StateDeprecated) {
		return fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, a.state, StateDeprecated)
	}
	if reason == "" {
		return fmt.Errorf("%w: deprecation reason cannot be empty", errs.ErrValidation)
	}

	return a.transition(StateDeprecated, &reason, metadata)
}

// Delete transitions any non-deleted state to the terminal Deleted state.
// The fact history remains queryable; no row is ever removed.
func (a *Aggregate) Delete(metadata event.Metadata) error {
	if a.version == 0 {
		return errs.ErrNotFound
	}

	return a.transition(StateDeleted, nil, metadata)
}

// transition validates the state machine edge and emits a StateChanged fact.
func (a *Aggregate) transition(to State, reason *string, metadata event.Metadata) error {
	if !a.state.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, a.state, to)
	}

	a.apply(NewStateChanged(a.id, a.version+1, a.state, to, reason, metadata))

	return nil
}

// apply folds the event into current state and records it as uncommitted.
func (a *Aggregate) apply(evt event.DomainEvent) {
	a.applyChange(evt)
	a.uncommittedEvents = append(a.uncommittedEvents, evt)
}

// applyChange is the pure fold step: it mutates derived state from the fact's
// recorded fields only, so replaying the same facts always reproduces the
// same state.
func (a *Aggregate) applyChange(evt event.DomainEvent) {
	switch e := evt.(type) {
	case *Created:
		a.name = e.Name
		a.content = e.Content
		a.description = e.Description
		a.state = StateDraft
		a.createdAt = evt.OccurredAt()
		a.updatedAt = evt.OccurredAt()
		a.createdBy = evt.Metadata().UserID
		a.updatedBy = evt.Metadata().UserID

	case *ContentUpdated:
		a.content = e.Content
		if e.Description != nil {
			a.description = e.Description
		}
		a.updatedAt = evt.OccurredAt()
		a.updatedBy = evt.Metadata().UserID

	case *StateChanged:
		a.state = e.ToState
		a.updatedAt = evt.OccurredAt()
		a.updatedBy = evt.Metadata().UserID
	}

	a.version = evt.Version()
}

// ReplayEvents restores aggregate state from its ordered fact sequence.
func (a *Aggregate) ReplayEvents(events []event.DomainEvent) {
	for _, evt := range events {
		a.applyChange(evt)
	}
}

// UncommittedEvents returns facts produced by commands but not yet persisted.
func (a *Aggregate) UncommittedEvents() []event.DomainEvent {
	return a.uncommittedEvents
}

// MarkEventsAsCommitted clears the uncommitted fact list.
func (a *Aggregate) MarkEventsAsCommitted() {
	a.uncommittedEvents = make([]event.DomainEvent, 0)
}

// Getters

// ID returns the aggregate ID.
func (a *Aggregate) ID() uuid.UUID { return a.id }

// Name returns the spec name.
func (a *Aggregate) Name() string { return a.name }

// Content returns the current full content.
func (a *Aggregate) Content() string { return a.content }

// Description returns the current description, if any.
func (a *Aggregate) Description() *string { return a.description }

// State returns the current lifecycle state.
func (a *Aggregate) State() State { return a.state }

// Version returns the sequence number of the last applied fact.
func (a *Aggregate) Version() int { return a.version }

// CreatedAt returns the creation time.
func (a *Aggregate) CreatedAt() time.Time { return a.createdAt }

// UpdatedAt returns the time of the last applied fact.
func (a *Aggregate) UpdatedAt() time.Time { return a.updatedAt }

// CreatedBy returns the user who created the spec.
func (a *Aggregate) CreatedBy() string { return a.createdBy }

// UpdatedBy returns the user behind the last applied fact.
func (a *Aggregate) UpdatedBy() string { return a.updatedBy }
