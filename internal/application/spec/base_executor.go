package spec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lllypuk/specd/internal/application/appcore"
	"github.com/lllypuk/specd/internal/domain/event"
	specdomain "github.com/lllypuk/specd/internal/domain/spec"
	"github.com/lllypuk/specd/internal/domain/uuid"
)

// maxConflictRetries bounds how many times a command is re-run against fresh
// state after losing an optimistic-concurrency race. Business rules are
// re-evaluated on every attempt, so a retry can legitimately fail with a
// different error than the first run.
const maxConflictRetries = 3

// AggregateOperation is a business operation performed on a loaded aggregate.
type AggregateOperation func(aggregate *specdomain.Aggregate) error

// BaseExecutor contains the shared load -> operate -> append cycle for spec
// commands. After a successful append the new facts are applied to the read
// model synchronously (so queries observe the writer's own commands) and
// published on the event bus best-effort.
type BaseExecutor struct {
	eventStore appcore.EventStore
	projector  appcore.ReadModelProjector
	bus        event.Bus
	logger     *slog.Logger
}

// ExecutorOption configures BaseExecutor.
type ExecutorOption func(*BaseExecutor)

// WithEventBus sets the notification bus. Optional: without it commands still
// commit, only async consumers go unnotified until the catch-up loop runs.
func WithEventBus(bus event.Bus) ExecutorOption {
	return func(e *BaseExecutor) {
		e.bus = bus
	}
}

// WithLogger sets the logger for the executor.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *BaseExecutor) {
		e.logger = logger
	}
}

// NewBaseExecutor creates a new base executor.
func NewBaseExecutor(
	eventStore appcore.EventStore,
	projector appcore.ReadModelProjector,
	opts ...ExecutorOption,
) *BaseExecutor {
	e := &BaseExecutor{
		eventStore: eventStore,
		projector:  projector,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Execute runs a business operation on an existing aggregate.
//
// The full cycle (load, replay, operate, append with the observed version) is
// retried on append conflicts up to maxConflictRetries. Business errors from
// the operation itself are never retried.
func (e *BaseExecutor) Execute(
	ctx context.Context,
	specID uuid.UUID,
	operation AggregateOperation,
	idempotentMessage string,
) (SpecResult, error) {
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		events, err := e.eventStore.LoadEvents(ctx, specID.String())
		if err != nil {
			if errors.Is(err, appcore.ErrAggregateNotFound) {
				return SpecResult{}, ErrSpecNotFound
			}
			return SpecResult{}, fmt.Errorf("%w: failed to load spec: %w", appcore.ErrEventStoreError, err)
		}

		aggregate := specdomain.NewSpecAggregate(specID)
		aggregate.ReplayEvents(events)

		versionBefore := aggregate.Version()

		if opErr := operation(aggregate); opErr != nil {
			return SpecResult{}, opErr
		}

		newEvents := aggregate.UncommittedEvents()
		if len(newEvents) == 0 {
			return SpecResult{
				SpecID:  specID,
				Version: versionBefore,
				Events:  newEvents,
				Success: true,
				Message: idempotentMessage,
			}, nil
		}

		err = e.Commit(ctx, specID, newEvents, versionBefore)
		if errors.Is(err, appcore.ErrConcurrencyConflict) {
			e.logger.InfoContext(ctx, "append conflict, retrying command",
				slog.String("spec_id", specID.String()),
				slog.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return SpecResult{}, err
		}

		aggregate.MarkEventsAsCommitted()

		return NewSuccessResult(specID, aggregate.Version(), newEvents), nil
	}

	return SpecResult{}, ErrConcurrentUpdate
}

// Commit appends facts under the expected-version guard, then updates the
// read model and notifies the bus. Projection and bus failures do not fail
// the command: the fact log has committed and the catch-up loop repairs the
// read model independently.
func (e *BaseExecutor) Commit(
	ctx context.Context,
	specID uuid.UUID,
	events []event.DomainEvent,
	expectedVersion int,
) error {
	if err := e.eventStore.AppendEvents(ctx, specID.String(), events, expectedVersion); err != nil {
		if errors.Is(err, appcore.ErrConcurrencyConflict) {
			return err
		}
		return fmt.Errorf("%w: failed to append events: %w", appcore.ErrEventStoreError, err)
	}

	for _, evt := range events {
		if err := e.projector.ProcessEvent(ctx, evt); err != nil {
			e.logger.WarnContext(ctx, "synchronous projection failed, catch-up will repair",
				slog.String("spec_id", specID.String()),
				slog.String("event_type", evt.EventType()),
				slog.String("error", err.Error()),
			)
			break
		}
	}

	if e.bus != nil {
		for _, evt := range events {
			if err := e.bus.Publish(ctx, evt); err != nil {
				e.logger.WarnContext(ctx, "event bus publish failed",
					slog.String("spec_id", specID.String()),
					slog.String("event_type", evt.EventType()),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	return nil
}
