// Package projector keeps the spec read models in sync with the fact log. It
// consumes facts two ways: synchronously after a command commits, and through
// a checkpointed catch-up loop over the global stream (used by the worker and
// for full rebuilds).
package projector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lllypuk/specd/internal/application/appcore"
	"github.com/lllypuk/specd/internal/domain/event"
	"github.com/lllypuk/specd/internal/domain/uuid"
	"github.com/lllypuk/specd/internal/infrastructure/projection"
)

const defaultBatchSize = 256

// SpecProjector folds spec facts into the projection store.
type SpecProjector struct {
	eventStore  appcore.EventStore
	projections projection.Store
	checkpoints CheckpointStore
	logger      *slog.Logger
	batchSize   int
}

// Option configures SpecProjector.
type Option func(*SpecProjector)

// WithLogger sets the logger for the projector.
func WithLogger(logger *slog.Logger) Option {
	return func(p *SpecProjector) {
		p.logger = logger
	}
}

// WithBatchSize sets how many facts a catch-up batch reads from the global
// stream.
func WithBatchSize(size int) Option {
	return func(p *SpecProjector) {
		if size > 0 {
			p.batchSize = size
		}
	}
}

// NewSpecProjector creates a new spec projector.
func NewSpecProjector(
	eventStore appcore.EventStore,
	projections projection.Store,
	checkpoints CheckpointStore,
	opts ...Option,
) *SpecProjector {
	p := &SpecProjector{
		eventStore:  eventStore,
		projections: projections,
		checkpoints: checkpoints,
		logger:      slog.Default(),
		batchSize:   defaultBatchSize,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// ProcessEvent applies one fact to the read model. A sequence gap means the
// projector missed earlier facts, so it falls back to a per-aggregate catch-up
// from the fact log.
func (p *SpecProjector) ProcessEvent(ctx context.Context, evt event.DomainEvent) error {
	err := p.projections.Apply(ctx, evt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, projection.ErrSequenceGap) {
		return fmt.Errorf("failed to project event %s: %w", evt.EventType(), err)
	}

	p.logger.InfoContext(ctx, "projection behind, catching aggregate up",
		slog.String("aggregate_id", evt.AggregateID()),
		slog.Int("fact_seq", evt.Version()),
	)

	id, errParse := uuid.ParseUUID(evt.AggregateID())
	if errParse != nil {
		return fmt.Errorf("invalid aggregate id in event: %w", errParse)
	}

	return p.CatchUpAggregate(ctx, id)
}

// CatchUpAggregate reloads an aggregate's facts and applies everything past
// the read model's last applied sequence.
func (p *SpecProjector) CatchUpAggregate(ctx context.Context, id uuid.UUID) error {
	lastApplied, err := p.projections.LastAppliedSeq(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read projection position: %w", err)
	}

	events, err := p.eventStore.LoadEvents(ctx, id.String())
	if err != nil {
		if errors.Is(err, appcore.ErrAggregateNotFound) {
			return nil // nothing to catch up
		}
		return fmt.Errorf("failed to load events for catch-up: %w", err)
	}

	for _, evt := range events {
		if evt.Version() <= lastApplied {
			continue
		}
		if errApply := p.projections.Apply(ctx, evt); errApply != nil {
			return fmt.Errorf("failed to apply event during catch-up: %w", errApply)
		}
	}

	return nil
}

// RebuildAll discards every read model and replays the whole fact log in
// global append order. The checkpoint is reset so the catch-up loop does not
// skip replayed facts.
func (p *SpecProjector) RebuildAll(ctx context.Context) error {
	p.logger.InfoContext(ctx, "rebuilding spec read models from the fact log")

	if err := p.projections.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset projections: %w", err)
	}
	if err := p.checkpoints.Save(ctx, 0); err != nil {
		return err
	}

	var cursor int64
	for {
		applied, next, err := p.applyBatch(ctx, cursor)
		if err != nil {
			return err
		}
		if applied == 0 {
			break
		}
		cursor = next
	}

	p.logger.InfoContext(ctx, "read model rebuild complete", slog.Int64("cursor", cursor))

	return nil
}

// CatchUpGlobal applies all facts past the saved checkpoint. Returns the
// number of facts applied.
func (p *SpecProjector) CatchUpGlobal(ctx context.Context) (int, error) {
	cursor, err := p.checkpoints.Load(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for {
		applied, next, errBatch := p.applyBatch(ctx, cursor)
		if errBatch != nil {
			return total, errBatch
		}
		if applied == 0 {
			return total, nil
		}
		total += applied
		cursor = next
	}
}

// Run polls the global fact stream until the context is cancelled. Used by
// the worker process; errors are logged and retried on the next tick.
func (p *SpecProjector) Run(ctx context.Context, pollInterval time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	p.logger.InfoContext(ctx, "projector loop started",
		slog.Duration("poll_interval", pollInterval),
	)

	for {
		select {
		case <-ctx.Done():
			p.logger.InfoContext(ctx, "projector loop stopped")
			return
		case <-ticker.C:
			if _, err := p.CatchUpGlobal(ctx); err != nil {
				p.logger.ErrorContext(ctx, "projector catch-up failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// applyBatch applies one batch of facts after cursor and advances the
// checkpoint. Facts the read model already absorbed are skipped inside
// Apply, so replays after a crash between apply and checkpoint are safe.
func (p *SpecProjector) applyBatch(ctx context.Context, cursor int64) (int, int64, error) {
	recorded, err := p.eventStore.ReadAllSince(ctx, cursor, p.batchSize)
	if err != nil {
		return 0, cursor, fmt.Errorf("failed to read fact stream: %w", err)
	}
	if len(recorded) == 0 {
		return 0, cursor, nil
	}

	for _, rec := range recorded {
		if errApply := p.projections.Apply(ctx, rec.Event); errApply != nil {
			return 0, cursor, fmt.Errorf("failed to apply fact at cursor %d: %w", rec.Cursor, errApply)
		}
		cursor = rec.Cursor
	}

	if err = p.checkpoints.Save(ctx, cursor); err != nil {
		return 0, cursor, err
	}

	return len(recorded), cursor, nil
}

// Ensure SpecProjector implements appcore.ReadModelProjector
var _ appcore.ReadModelProjector = (*SpecProjector)(nil)
