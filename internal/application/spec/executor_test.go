package spec_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/specd/internal/application/appcore"
	specapp "github.com/lllypuk/specd/internal/application/spec"
	"github.com/lllypuk/specd/internal/domain/errs"
	"github.com/lllypuk/specd/internal/domain/event"
	"github.com/lllypuk/specd/internal/infrastructure/eventbus"
	"github.com/lllypuk/specd/internal/infrastructure/eventstore"
	"github.com/lllypuk/specd/internal/infrastructure/projection"
	"github.com/lllypuk/specd/internal/infrastructure/projector"
)

// flakyAppendStore wraps a real store and fails a configured number of
// appends before letting them through. Loads always hit the real store, so a
// retried command observes genuine state.
type flakyAppendStore struct {
	appcore.EventStore

	mu            sync.Mutex
	conflictsLeft int
	failWith      error
}

func (s *flakyAppendStore) AppendEvents(
	ctx context.Context,
	aggregateID string,
	events []event.DomainEvent,
	expectedVersion int,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWith != nil {
		return s.failWith
	}
	if s.conflictsLeft > 0 {
		s.conflictsLeft--
		return appcore.ErrConcurrencyConflict
	}
	return s.EventStore.AppendEvents(ctx, aggregateID, events, expectedVersion)
}

// newFlakyFixture builds the same wiring as newFixture but routes appends
// through the flaky store.
func newFlakyFixture() (*fixture, *flakyAppendStore) {
	inner := eventstore.NewInMemoryEventStore()
	store := &flakyAppendStore{EventStore: inner}
	projections := projection.NewInMemoryStore()
	bus := eventbus.NewInMemoryBus()
	proj := projector.NewSpecProjector(store, projections, projector.NewInMemoryCheckpointStore())

	executor := specapp.NewBaseExecutor(store, proj, specapp.WithEventBus(bus))

	f := &fixture{
		eventStore:  inner,
		projections: projections,
		bus:         bus,
		service: specapp.NewService(
			specapp.NewCreateSpecUseCase(executor),
			specapp.NewUpdateSpecUseCase(executor),
			specapp.NewPublishSpecUseCase(executor),
			specapp.NewDeprecateSpecUseCase(executor),
			specapp.NewDeleteSpecUseCase(executor),
			specapp.NewQueries(store, projections),
		),
	}

	return f, store
}

func TestConcurrentUpdates(t *testing.T) {
	ctx := context.Background()

	t.Run("two writers racing the same expected version", func(t *testing.T) {
		f := newFixture()
		created := f.create(t, "payments-api")

		contents := []string{"a: left", "a: right"}
		errResults := make([]error, len(contents))

		var start, done sync.WaitGroup
		start.Add(1)
		done.Add(len(contents))
		for i, content := range contents {
			go func(i int, content string) {
				defer done.Done()
				start.Wait()
				_, err := f.service.UpdateSpec(ctx, specapp.UpdateSpecCommand{
					SpecID:          created.SpecID,
					ExpectedVersion: 1,
					Content:         content,
					UpdatedBy:       "bob",
				})
				errResults[i] = err
			}(i, content)
		}
		start.Done()
		done.Wait()

		// Exactly one writer wins; the loser sees a version mismatch.
		var wins, mismatches int
		for _, err := range errResults {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, errs.ErrVersionMismatch):
				mismatches++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, 1, mismatches)

		// No fact lost, no fact duplicated: create + winning update.
		history, err := f.service.GetHistory(ctx, created.SpecID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, 2, history[1].SequenceNumber)

		model, err := f.service.GetSpec(ctx, created.SpecID)
		require.NoError(t, err)
		assert.Equal(t, 2, model.Version)
		assert.Contains(t, contents, model.Content)
	})
}

func TestExecutorConflictRetries(t *testing.T) {
	ctx := context.Background()

	t.Run("transient append conflicts are retried", func(t *testing.T) {
		f, store := newFlakyFixture()
		created := f.create(t, "payments-api")

		store.mu.Lock()
		store.conflictsLeft = 2
		store.mu.Unlock()

		result, err := f.service.PublishSpec(ctx, specapp.PublishSpecCommand{
			SpecID:      created.SpecID,
			PublishedBy: "alice",
		})

		require.NoError(t, err)
		assert.Equal(t, 2, result.Version)

		model, err := f.service.GetSpec(ctx, created.SpecID)
		require.NoError(t, err)
		assert.Equal(t, "published", model.State)
	})

	t.Run("persistent conflicts exhaust the retries", func(t *testing.T) {
		f, store := newFlakyFixture()
		created := f.create(t, "payments-api")

		store.mu.Lock()
		store.conflictsLeft = 100
		store.mu.Unlock()

		_, err := f.service.PublishSpec(ctx, specapp.PublishSpecCommand{
			SpecID:      created.SpecID,
			PublishedBy: "alice",
		})

		require.ErrorIs(t, err, specapp.ErrConcurrentUpdate)

		// Nothing was committed across any attempt.
		history, histErr := f.service.GetHistory(ctx, created.SpecID)
		require.NoError(t, histErr)
		assert.Len(t, history, 1)
	})

	t.Run("non-conflict append failures are not retried", func(t *testing.T) {
		f, store := newFlakyFixture()
		created := f.create(t, "payments-api")

		store.mu.Lock()
		store.failWith = errors.New("connection reset")
		store.mu.Unlock()

		_, err := f.service.PublishSpec(ctx, specapp.PublishSpecCommand{
			SpecID:      created.SpecID,
			PublishedBy: "alice",
		})

		require.ErrorIs(t, err, appcore.ErrEventStoreError)
	})
}
