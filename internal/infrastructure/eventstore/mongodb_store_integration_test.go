//go:build integration

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
	"github.com/lllypuk/specd/tests/testutil"
)

func newMongoStore(t *testing.T) *eventstore.MongoEventStore {
	t.Helper()

	client, db := testutil.SetupTestMongoDB(t)
	store := eventstore.NewMongoEventStore(client, db.Name())
	require.NoError(t, store.EnsureIndexes(context.Background()))

	return store
}

func TestMongoEventStore_AppendAndLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips a fact sequence", func(t *testing.T) {
		store := newMongoStore(t)
		id := uuid.NewUUID()
		facts := specFacts(t, id, 3)

		require.NoError(t, store.AppendEvents(ctx, id.String(), facts, 0))

		loaded, err := store.LoadEvents(ctx, id.String())
		require.NoError(t, err)
		require.Len(t, loaded, 3)
		for i, evt := range loaded {
			assert.Equal(t, i+1, evt.Version())
			assert.Equal(t, id.String(), evt.AggregateID())
		}

		created, ok := loaded[0].(*spec.Created)
		require.True(t, ok, "first fact should deserialize as Created")
		assert.Equal(t, "sample", created.Name)
		assert.Equal(t, "a: 1", created.Content)
		assert.Equal(t, "tester", created.Metadata().UserID)
	})

	t.Run("version tracks the appended head", func(t *testing.T) {
		store := newMongoStore(t)
		id := uuid.NewUUID()

		version, err := store.GetVersion(ctx, id.String())
		require.NoError(t, err)
		assert.Zero(t, version)

		require.NoError(t, store.AppendEvents(ctx, id.String(), specFacts(t, id, 2), 0))

		version, err = store.GetVersion(ctx, id.String())
		require.NoError(t, err)
		assert.Equal(t, 2, version)
	})

	t.Run("stale expected version conflicts and writes nothing", func(t *testing.T) {
		store := newMongoStore(t)
		id := uuid.NewUUID()
		require.NoError(t, store.AppendEvents(ctx, id.String(), specFacts(t, id, 2), 0))

		late := spec.NewContentUpdated(id, 2, "b: 1", nil, testMetadata())
		err := store.AppendEvents(ctx, id.String(), []event.DomainEvent{late}, 1)

		require.ErrorIs(t, err, appcore.ErrConcurrencyConflict)

		loaded, err := store.LoadEvents(ctx, id.String())
		require.NoError(t, err)
		assert.Len(t, loaded, 2)
	})

	t.Run("unknown aggregate", func(t *testing.T) {
		store := newMongoStore(t)

		_, err := store.LoadEvents(ctx, uuid.NewUUID().String())

		require.ErrorIs(t, err, appcore.ErrAggregateNotFound)
	})
}

func TestMongoEventStore_LoadEventsUpTo(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the prefix", func(t *testing.T) {
		store := newMongoStore(t)
		id := uuid.NewUUID()
		require.NoError(t, store.AppendEvents(ctx, id.String(), specFacts(t, id, 3), 0))

		loaded, err := store.LoadEventsUpTo(ctx, id.String(), 2)

		require.NoError(t, err)
		require.Len(t, loaded, 2)
		assert.Equal(t, 2, loaded[1].Version())
	})

	t.Run("non-positive version is rejected", func(t *testing.T) {
		store := newMongoStore(t)

		_, err := store.LoadEventsUpTo(ctx, uuid.NewUUID().String(), 0)

		require.ErrorIs(t, err, appcore.ErrInvalidVersion)
	})
}

func TestMongoEventStore_ReadAllSince(t *testing.T) {
	ctx := context.Background()

	t.Run("global order across aggregates", func(t *testing.T) {
		store := newMongoStore(t)
		first := uuid.NewUUID()
		second := uuid.NewUUID()
		require.NoError(t, store.AppendEvents(ctx, first.String(), specFacts(t, first, 2), 0))
		require.NoError(t, store.AppendEvents(ctx, second.String(), specFacts(t, second, 2), 0))

		recorded, err := store.ReadAllSince(ctx, 0, 0)

		require.NoError(t, err)
		require.Len(t, recorded, 4)
		for i := 1; i < len(recorded); i++ {
			assert.Greater(t, recorded[i].Cursor, recorded[i-1].Cursor)
			assert.NotEmpty(t, recorded[i].EventID)
		}
		assert.Equal(t, first.String(), recorded[0].Event.AggregateID())
		assert.Equal(t, second.String(), recorded[2].Event.AggregateID())
	})

	t.Run("resumes after a cursor with a limit", func(t *testing.T) {
		store := newMongoStore(t)
		id := uuid.NewUUID()
		require.NoError(t, store.AppendEvents(ctx, id.String(), specFacts(t, id, 3), 0))

		all, err := store.ReadAllSince(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)

		rest, err := store.ReadAllSince(ctx, all[0].Cursor, 1)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, all[1].Cursor, rest[0].Cursor)
	})

	t.Run("empty past the head", func(t *testing.T) {
		store := newMongoStore(t)
		id := uuid.NewUUID()
		require.NoError(t, store.AppendEvents(ctx, id.String(), specFacts(t, id, 1), 0))

		recorded, err := store.ReadAllSince(ctx, 1_000_000, 0)

		require.NoError(t, err)
		assert.Empty(t, recorded)
	})
}
