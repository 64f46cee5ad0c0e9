//go:build integration

package eventbus_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/specd/internal/domain/event"
	"github.com/lllypuk/specd/internal/domain/spec"
	"github.com/lllypuk/specd/internal/domain/uuid"
	"github.com/lllypuk/specd/internal/infrastructure/eventbus"
	"github.com/lllypuk/specd/tests/testutil"
)

const (
	busDeliveryTimeout = 5 * time.Second
	busPollInterval    = 50 * time.Millisecond
)

// startBus runs the bus loop in the background and stops it when the test
// finishes.
func startBus(t *testing.T, bus *eventbus.RedisEventBus) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = bus.Start(ctx)
	}()

	t.Cleanup(func() {
		_ = bus.Shutdown()
		cancel()
		<-done
	})
}

func TestRedisEventBus_PublishSubscribe(t *testing.T) {
	t.Run("round trips a fact over pub/sub", func(t *testing.T) {
		client := testutil.SetupTestRedis(t)
		bus := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix("t1:events:"))

		var mu sync.Mutex
		var received []event.DomainEvent
		require.NoError(t, bus.Subscribe(spec.EventTypeSpecCreated, func(_ context.Context, evt event.DomainEvent) error {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, evt)
			return nil
		}))

		startBus(t, bus)

		id := uuid.NewUUID()
		evt := spec.NewSpecCreated(id, "payments-api", "a: 1", nil, testMetadata())

		// Publish until the subscription is live; pub/sub drops messages sent
		// before SUBSCRIBE completes.
		require.Eventually(t, func() bool {
			require.NoError(t, bus.Publish(context.Background(), evt))
			mu.Lock()
			defer mu.Unlock()
			return len(received) > 0
		}, busDeliveryTimeout, busPollInterval)

		mu.Lock()
		defer mu.Unlock()
		got := received[0]
		assert.Equal(t, spec.EventTypeSpecCreated, got.EventType())
		assert.Equal(t, id.String(), got.AggregateID())
		assert.Equal(t, spec.AggregateType, got.AggregateType())
		assert.Equal(t, 1, got.Version())
		assert.Equal(t, "tester", got.Metadata().UserID)
	})

	t.Run("events route by type", func(t *testing.T) {
		client := testutil.SetupTestRedis(t)
		bus := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix("t2:events:"))

		var mu sync.Mutex
		var created, updated int
		require.NoError(t, bus.Subscribe(spec.EventTypeSpecCreated, func(context.Context, event.DomainEvent) error {
			mu.Lock()
			defer mu.Unlock()
			created++
			return nil
		}))
		require.NoError(t, bus.Subscribe(spec.EventTypeSpecUpdated, func(context.Context, event.DomainEvent) error {
			mu.Lock()
			defer mu.Unlock()
			updated++
			return nil
		}))

		startBus(t, bus)

		id := uuid.NewUUID()
		require.Eventually(t, func() bool {
			require.NoError(t, bus.Publish(context.Background(),
				spec.NewContentUpdated(id, 2, "a: 2", nil, testMetadata())))
			mu.Lock()
			defer mu.Unlock()
			return updated > 0
		}, busDeliveryTimeout, busPollInterval)

		mu.Lock()
		defer mu.Unlock()
		assert.Zero(t, created, "created handler must not see update facts")
	})

	t.Run("failing handler is retried", func(t *testing.T) {
		client := testutil.SetupTestRedis(t)
		bus := eventbus.NewRedisEventBus(client,
			eventbus.WithChannelPrefix("t3:events:"),
			eventbus.WithRetryConfig(eventbus.RetryConfig{
				MaxRetries:     3,
				InitialBackoff: 10 * time.Millisecond,
				MaxBackoff:     50 * time.Millisecond,
				BackoffFactor:  2.0,
			}),
		)

		var mu sync.Mutex
		attempts := 0
		succeeded := false
		require.NoError(t, bus.Subscribe(spec.EventTypeSpecCreated, func(context.Context, event.DomainEvent) error {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts < 2 {
				return errors.New("transient failure")
			}
			succeeded = true
			return nil
		}))

		startBus(t, bus)

		evt := spec.NewSpecCreated(uuid.NewUUID(), "retry-spec", "a: 1", nil, testMetadata())
		require.Eventually(t, func() bool {
			mu.Lock()
			started := attempts > 0
			done := succeeded
			mu.Unlock()
			if !started {
				require.NoError(t, bus.Publish(context.Background(), evt))
			}
			return done
		}, busDeliveryTimeout, busPollInterval)

		mu.Lock()
		defer mu.Unlock()
		assert.GreaterOrEqual(t, attempts, 2)
	})
}

func TestRedisEventBus_Lifecycle(t *testing.T) {
	t.Run("start twice fails", func(t *testing.T) {
		client := testutil.SetupTestRedis(t)
		bus := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix("t4:events:"))
		require.NoError(t, bus.Subscribe(spec.EventTypeSpecCreated, func(context.Context, event.DomainEvent) error {
			return nil
		}))

		startBus(t, bus)

		require.Eventually(t, bus.IsRunning, busDeliveryTimeout, busPollInterval)
		require.Error(t, bus.Start(context.Background()))
	})

	t.Run("shutdown is idempotent", func(t *testing.T) {
		client := testutil.SetupTestRedis(t)
		bus := eventbus.NewRedisEventBus(client, eventbus.WithChannelPrefix("t5:events:"))

		require.NoError(t, bus.Shutdown())
		require.NoError(t, bus.Shutdown())
	})
}
