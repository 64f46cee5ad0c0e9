package eventstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/specd/internal/application/appcore"
	"github.com/lllypuk/specd/internal/domain/event"
	"github.com/lllypuk/specd/internal/domain/spec"
	"github.com/lllypuk/specd/internal/domain/uuid"
	"github.com/lllypuk/specd/internal/infrastructure/eventstore"
)

func testMetadata() event.Metadata {
	return event.NewMetadata("tester", uuid.NewUUID().String(), "")
}

func specFacts(t *testing.T, id uuid.UUID, count int) []event.DomainEvent {
	t.Helper()

	agg := spec.NewSpecAggregate(id)
	require.NoError(t, agg.Create("sample", "a: 1", nil, testMetadata()))
	for v := 2; v <= count; v++ {
		require.NoError(t, agg.UpdateContent(v-1, "a: 1", nil, testMetadata()))
	}

	events := agg.UncommittedEvents()
	require.Len(t, events, count)

	return events
}

func TestInMemoryEventStore_AppendEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("append to a new aggregate", func(t *testing.T) {
		store := eventstore.NewInMemoryEventStore()
		id := uuid.NewUUID()

		err := store.AppendEvents(ctx, id.String(), specFacts(t, id, 1), 0)

		require.NoError(t, err)
		version, err := store.GetVersion(ctx, id.String())
		require.NoError(t, err)
		assert.Equal(t, 1, version)
	})

	t.Run("expected version guard", func(t *testing.T) {
		store := eventstore.NewInMemoryEventStore()
		id := uuid.NewUUID()
		facts := specFacts(t, id, 2)
		require.NoError(t, store.AppendEvents(ctx, id.String(), facts[:1], 0))

		// Stale expectation: version is 1, not 0
		err := store.AppendEvents(ctx, id.String(), facts[1:], 0)

		require.ErrorIs(t, err, appcore.ErrConcurrencyConflict)
		version, _ := store.GetVersion(ctx, id.String())
		assert.Equal(t, 1, version)
	})

	t.Run("nothing written on conflict", func(t *testing.T) {
		store := eventstore.NewInMemoryEventStore()
		id := uuid.NewUUID()
		facts := specFacts(t, id, 3)
		require.NoError(t, store.AppendEvents(ctx, id.String(), facts[:1], 0))

		err := store.AppendEvents(ctx, id.String(), facts[1:], 5)

		require.ErrorIs(t, err, appcore.ErrConcurrencyConflict)
		loaded, loadErr := store.LoadEvents(ctx, id.String())
		require.NoError(t, loadErr)
		assert.Len(t, loaded, 1)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		store := eventstore.NewInMemoryEventStore()
		id := uuid.NewUUID()

		require.NoError(t, store.AppendEvents(ctx, id.String(), nil, 0))

		_, err := store.LoadEvents(ctx, id.String())
		require.ErrorIs(t, err, appcore.ErrAggregateNotFound)
	})
}

func TestInMemoryEventStore_LoadEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("loads in sequence order", func(t *testing.T) {
		store := eventstore.NewInMemoryEventStore()
		id := uuid.NewUUID()
		require.NoError(t, store.AppendEvents(ctx, id.String(), specFacts(t, id, 3), 0))

		loaded, err := store.LoadEvents(ctx, id.String())

		require.NoError(t, err)
		require.Len(t, loaded, 3)
		for i, evt := range loaded {
			assert.Equal(t, i+1, evt.Version())
		}
	})

	t.Run("missing aggregate", func(t *testing.T) {
		store := eventstore.NewInMemoryEventStore()

		_, err := store.LoadEvents(ctx, uuid.NewUUID().String())

		require.ErrorIs(t, err, appcore.ErrAggregateNotFound)
	})
}

func TestInMemoryEventStore_LoadEventsUpTo(t *testing.T) {
	ctx := context.Background()

	t.Run("historical prefix", func(t *testing.T) {
		store := eventstore.NewInMemoryEventStore()
		id := uuid.NewUUID()
		require.NoError(t, store.AppendEvents(ctx, id.String(), specFacts(t, id, 4), 0))

		loaded, err := store.LoadEventsUpTo(ctx, id.String(), 2)

		require.NoError(t, err)
		require.Len(t, loaded, 2)
		assert.Equal(t, 2, loaded[len(loaded)-1].Version())
	})

	t.Run("maxVersion beyond head returns everything", func(t *testing.T) {
		store := eventstore.NewInMemoryEventStore()
		id := uuid.NewUUID()
		require.NoError(t, store.AppendEvents(ctx, id.String(), specFacts(t, id, 2), 0))

		loaded, err := store.LoadEventsUpTo(ctx, id.String(), 10)

		require.NoError(t, err)
		assert.Len(t, loaded, 2)
	})

	t.Run("invalid version", func(t *testing.T) {
		store := eventstore.NewInMemoryEventStore()

		_, err := store.LoadEventsUpTo(ctx, uuid.NewUUID().String(), 0)

		require.ErrorIs(t, err, appcore.ErrInvalidVersion)
	})
}

func TestInMemoryEventStore_ReadAllSince(t *testing.T) {
	ctx := context.Background()

	t.Run("global order interleaves aggregates", func(t *testing.T) {
		store := eventstore.NewInMemoryEventStore()
		first := uuid.NewUUID()
		second := uuid.NewUUID()
		firstFacts := specFacts(t, first, 2)
		secondFacts := specFacts(t, second, 1)

		require.NoError(t, store.AppendEvents(ctx, first.String(), firstFacts[:1], 0))
		require.NoError(t, store.AppendEvents(ctx, second.String(), secondFacts, 0))
		require.NoError(t, store.AppendEvents(ctx, first.String(), firstFacts[1:], 1))

		recorded, err := store.ReadAllSince(ctx, 0, 10)

		require.NoError(t, err)
		require.Len(t, recorded, 3)
		assert.Equal(t, first.String(), recorded[0].Event.AggregateID())
		assert.Equal(t, second.String(), recorded[1].Event.AggregateID())
		assert.Equal(t, first.String(), recorded[2].Event.AggregateID())
		for i, rec := range recorded {
			assert.Equal(t, int64(i+1), rec.Cursor)
			assert.NotEmpty(t, rec.EventID)
		}
	})

	t.Run("resumes after cursor", func(t *testing.T) {
		store := eventstore.NewInMemoryEventStore()
		id := uuid.NewUUID()
		require.NoError(t, store.AppendEvents(ctx, id.String(), specFacts(t, id, 3), 0))

		recorded, err := store.ReadAllSince(ctx, 1, 10)

		require.NoError(t, err)
		require.Len(t, recorded, 2)
		assert.Equal(t, int64(2), recorded[0].Cursor)
	})

	t.Run("limit caps the batch", func(t *testing.T) {
		store := eventstore.NewInMemoryEventStore()
		id := uuid.NewUUID()
		require.NoError(t, store.AppendEvents(ctx, id.String(), specFacts(t, id, 3), 0))

		recorded, err := store.ReadAllSince(ctx, 0, 2)

		require.NoError(t, err)
		assert.Len(t, recorded, 2)
	})

	t.Run("empty past the head", func(t *testing.T) {
		store := eventstore.NewInMemoryEventStore()
		id := uuid.NewUUID()
		require.NoError(t, store.AppendEvents(ctx, id.String(), specFacts(t, id, 1), 0))

		recorded, err := store.ReadAllSince(ctx, 1, 10)

		require.NoError(t, err)
		assert.Empty(t, recorded)
	})
}
