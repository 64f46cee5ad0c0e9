package projection

import (
	"fmt"

	"github.com/lllypuk/specd/internal/domain/event"
	"github.com/lllypuk/specd/internal/domain/spec"
)

// foldEvent applies one fact to a read model and returns the updated copy.
// current is nil only for Created facts. The logic mirrors the aggregate's
// own fold: it copies recorded fields, it never re-validates — the facts were
// validated by the aggregate before they were appended.
func foldEvent(current *SpecReadModel, evt event.DomainEvent) (*SpecReadModel, error) {
	seq := evt.Version()

	switch e := evt.(type) {
	case *spec.Created:
		if current != nil {
			return nil, fmt.Errorf("created fact for existing read model %s", evt.AggregateID())
		}
		return &SpecReadModel{
			ID:             evt.AggregateID(),
			Name:           e.Name,
			Content:        e.Content,
			Description:    e.Description,
			Version:        seq,
			State:          spec.StateDraft.String(),
			CreatedAt:      evt.OccurredAt(),
			UpdatedAt:      evt.OccurredAt(),
			CreatedBy:      evt.Metadata().UserID,
			UpdatedBy:      evt.Metadata().UserID,
			LastAppliedSeq: seq,
		}, nil

	case *spec.ContentUpdated:
		next := *current
		next.Content = e.Content
		if e.Description != nil {
			next.Description = e.Description
		}
		next.Version = seq
		next.UpdatedAt = evt.OccurredAt()
		next.UpdatedBy = evt.Metadata().UserID
		next.LastAppliedSeq = seq
		return &next, nil

	case *spec.StateChanged:
		next := *current
		next.State = e.ToState.String()
		next.Version = seq
		next.UpdatedAt = evt.OccurredAt()
		next.UpdatedBy = evt.Metadata().UserID
		next.LastAppliedSeq = seq
		return &next, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", evt.EventType())
	}
}
