package appcore

import (
	"context"

	"github.com/lllypuk/specd/internal/domain/event"
	"github.com/lllypuk/specd/internal/domain/uuid"
)

// ReadModelProjector maintains read models derived from the event store.
// The projection is a cache: it may be discarded and rebuilt at will and is
// never authoritative for concurrency decisions.
type ReadModelProjector interface {
	// ProcessEvent applies a single event to the read model. Applying the
	// same fact twice is a no-op (at-least-once delivery safe).
	ProcessEvent(ctx context.Context, evt event.DomainEvent) error

	// CatchUpAggregate reloads the aggregate's facts from the event store and
	// applies any the read model has not yet seen.
	CatchUpAggregate(ctx context.Context, aggregateID uuid.UUID) error

	// RebuildAll resets the read model and replays the full event log.
	// The result must be identical to incremental application.
	RebuildAll(ctx context.Context) error
}
