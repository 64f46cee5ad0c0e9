package spec

import (
	"github.com/lllypuk/specd/internal/domain/event"
	"github.com/lllypuk/specd/internal/domain/uuid"
)

// AggregateType identifies spec events in the shared event store.
const AggregateType = "Spec"

// Event types
const (
	EventTypeSpecCreated  = "spec.created"
	EventTypeSpecUpdated  = "spec.updated"
	EventTypeStateChanged = "spec.state_changed"
)

// Created records the birth of a spec. It is always the first fact of an
// aggregate; the resulting version is 1 and the initial state is Draft.
type Created struct {
	event.BaseEvent

	Name        string  `json:"name"        bson:"name"`
	Content     string  `json:"content"     bson:"content"`
	Description *string `json:"description" bson:"description,omitempty"`
}

// NewSpecCreated creates a Created event.
func NewSpecCreated(
	specID uuid.UUID,
	name, content string,
	description *string,
	metadata event.Metadata,
) *Created {
	return &Created{
		BaseEvent:   event.NewBaseEvent(EventTypeSpecCreated, specID.String(), AggregateType, initialVersion, metadata),
		Name:        name,
		Content:     content,
		Description: description,
	}
}

// ContentUpdated records a full content replacement. The description is only
// overwritten when present; content is never patched or diffed.
type ContentUpdated struct {
	event.BaseEvent

	Content     string  `json:"content"     bson:"content"`
	Description *string `json:"description" bson:"description,omitempty"`
}

// NewContentUpdated creates a ContentUpdated event carrying sequence number version.
func NewContentUpdated(
	specID uuid.UUID,
	version int,
	content string,
	description *string,
	metadata event.Metadata,
) *ContentUpdated {
	return &ContentUpdated{
		BaseEvent:   event.NewBaseEvent(EventTypeSpecUpdated, specID.String(), AggregateType, version, metadata),
		Content:     content,
		Description: description,
	}
}

// StateChanged records a lifecycle transition that the aggregate has already
// validated. Reason is set for deprecations.
type StateChanged struct {
	event.BaseEvent

	FromState State   `json:"from_state" bson:"from_state"`
	ToState   State   `json:"to_state"   bson:"to_state"`
	Reason    *string `json:"reason"     bson:"reason,omitempty"`
}

// NewStateChanged creates a StateChanged event carrying sequence number version.
func NewStateChanged(
	specID uuid.UUID,
	version int,
	from, to State,
	reason *string,
	metadata event.Metadata,
) *StateChanged {
	return &StateChanged{
		BaseEvent: event.NewBaseEvent(EventTypeStateChanged, specID.String(), AggregateType, version, metadata),
		FromState: from,
		ToState:   to,
		Reason:    reason,
	}
}
