package projector_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/specd/internal/domain/event"
	"github.com/lllypuk/specd/internal/domain/spec"
	"github.com/lllypuk/specd/internal/domain/uuid"
	"github.com/lllypuk/specd/internal/infrastructure/eventstore"
	"github.com/lllypuk/specd/internal/infrastructure/projection"
	"github.com/lllypuk/specd/internal/infrastructure/projector"
)

type fixture struct {
	eventStore  *eventstore.InMemoryEventStore
	projections *projection.InMemoryStore
	checkpoints *projector.InMemoryCheckpointStore
	projector   *projector.SpecProjector
}

func newFixture() *fixture {
	eventStore := eventstore.NewInMemoryEventStore()
	projections := projection.NewInMemoryStore()
	checkpoints := projector.NewInMemoryCheckpointStore()

	return &fixture{
		eventStore:  eventStore,
		projections: projections,
		checkpoints: checkpoints,
		projector:   projector.NewSpecProjector(eventStore, projections, checkpoints),
	}
}

func testMetadata() event.Metadata {
	return event.NewMetadata("tester", uuid.NewUUID().String(), "")
}

// appendLifecycle stores a created -> updated -> published sequence and
// returns the facts.
func appendLifecycle(t *testing.T, store *eventstore.InMemoryEventStore, id uuid.UUID) []event.DomainEvent {
	t.Helper()

	facts := []event.DomainEvent{
		spec.NewSpecCreated(id, "payments-api", "a: 1", nil, testMetadata()),
		spec.NewContentUpdated(id, 2, "a: 2", nil, testMetadata()),
		spec.NewStateChanged(id, 3, spec.StateDraft, spec.StatePublished, nil, testMetadata()),
	}
	require.NoError(t, store.AppendEvents(context.Background(), id.String(), facts, 0))

	return facts
}

func TestSpecProjector_ProcessEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("applies facts in order", func(t *testing.T) {
		f := newFixture()
		id := uuid.NewUUID()
		facts := appendLifecycle(t, f.eventStore, id)

		for _, evt := range facts {
			require.NoError(t, f.projector.ProcessEvent(ctx, evt))
		}

		model, err := f.projections.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 3, model.Version)
		assert.Equal(t, "published", model.State)
	})

	t.Run("sequence gap triggers catch-up", func(t *testing.T) {
		f := newFixture()
		id := uuid.NewUUID()
		facts := appendLifecycle(t, f.eventStore, id)

		// Deliver only the last fact; the projector must fetch the missing
		// prefix from the fact log.
		require.NoError(t, f.projector.ProcessEvent(ctx, facts[2]))

		model, err := f.projections.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 3, model.LastAppliedSeq)
		assert.Equal(t, "a: 2", model.Content)
	})

	t.Run("duplicate delivery is harmless", func(t *testing.T) {
		f := newFixture()
		id := uuid.NewUUID()
		facts := appendLifecycle(t, f.eventStore, id)

		for _, evt := range facts {
			require.NoError(t, f.projector.ProcessEvent(ctx, evt))
		}
		for _, evt := range facts {
			require.NoError(t, f.projector.ProcessEvent(ctx, evt))
		}

		model, err := f.projections.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 3, model.LastAppliedSeq)
	})
}

func TestSpecProjector_CatchUpAggregate(t *testing.T) {
	ctx := context.Background()

	t.Run("from scratch", func(t *testing.T) {
		f := newFixture()
		id := uuid.NewUUID()
		appendLifecycle(t, f.eventStore, id)

		require.NoError(t, f.projector.CatchUpAggregate(ctx, id))

		model, err := f.projections.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 3, model.Version)
	})

	t.Run("partial", func(t *testing.T) {
		f := newFixture()
		id := uuid.NewUUID()
		facts := appendLifecycle(t, f.eventStore, id)
		require.NoError(t, f.projections.Apply(ctx, facts[0]))

		require.NoError(t, f.projector.CatchUpAggregate(ctx, id))

		model, err := f.projections.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 3, model.LastAppliedSeq)
	})

	t.Run("unknown aggregate is a no-op", func(t *testing.T) {
		f := newFixture()

		require.NoError(t, f.projector.CatchUpAggregate(ctx, uuid.NewUUID()))
	})
}

func TestSpecProjector_CatchUpGlobal(t *testing.T) {
	ctx := context.Background()

	t.Run("applies everything past the checkpoint", func(t *testing.T) {
		f := newFixture()
		first := uuid.NewUUID()
		second := uuid.NewUUID()
		appendLifecycle(t, f.eventStore, first)
		appendLifecycle(t, f.eventStore, second)

		applied, err := f.projector.CatchUpGlobal(ctx)

		require.NoError(t, err)
		assert.Equal(t, 6, applied)

		cursor, err := f.checkpoints.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(6), cursor)
	})

	t.Run("resumes from the saved checkpoint", func(t *testing.T) {
		f := newFixture()
		first := uuid.NewUUID()
		appendLifecycle(t, f.eventStore, first)

		applied, err := f.projector.CatchUpGlobal(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, applied)

		second := uuid.NewUUID()
		appendLifecycle(t, f.eventStore, second)

		applied, err = f.projector.CatchUpGlobal(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, applied)

		model, err := f.projections.Get(ctx, second)
		require.NoError(t, err)
		assert.Equal(t, 3, model.Version)
	})

	t.Run("idle stream applies nothing", func(t *testing.T) {
		f := newFixture()

		applied, err := f.projector.CatchUpGlobal(ctx)

		require.NoError(t, err)
		assert.Zero(t, applied)
	})
}

func TestSpecProjector_RebuildAll(t *testing.T) {
	ctx := context.Background()

	t.Run("rebuild matches incremental application", func(t *testing.T) {
		f := newFixture()
		first := uuid.NewUUID()
		second := uuid.NewUUID()
		appendLifecycle(t, f.eventStore, first)
		appendLifecycle(t, f.eventStore, second)

		_, err := f.projector.CatchUpGlobal(ctx)
		require.NoError(t, err)
		incremental, err := f.projections.Get(ctx, first)
		require.NoError(t, err)

		require.NoError(t, f.projector.RebuildAll(ctx))

		rebuilt, err := f.projections.Get(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, incremental, rebuilt)

		cursor, err := f.checkpoints.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(6), cursor)
	})

	t.Run("rebuild discards stale models", func(t *testing.T) {
		f := newFixture()
		id := uuid.NewUUID()
		appendLifecycle(t, f.eventStore, id)

		// Seed a model for an aggregate that has no facts; the rebuild must
		// drop it.
		orphan := uuid.NewUUID()
		require.NoError(t, f.projections.Apply(ctx,
			spec.NewSpecCreated(orphan, "orphan", "a: 1", nil, testMetadata())))

		require.NoError(t, f.projector.RebuildAll(ctx))

		_, err := f.projections.Get(ctx, orphan)
		require.ErrorIs(t, err, projection.ErrNotFound)

		model, err := f.projections.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 3, model.Version)
	})
}
