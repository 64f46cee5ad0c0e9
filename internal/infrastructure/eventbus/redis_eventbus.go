// Package eventbus delivers committed spec facts to asynchronous consumers
// over Redis Pub/Sub. Delivery is best-effort notification: the fact log is
// the source of truth and consumers reconcile against it on gaps.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lllypuk/specd/internal/domain/event"
)

// Default retry configuration constants.
const (
	defaultMaxRetries     = 3
	defaultInitialBackoff = 100 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
	defaultBackoffFactor  = 2.0
	defaultChannelPrefix  = "specd:events:"
)

// EventHandler is a function that handles domain events.
type EventHandler func(ctx context.Context, event event.DomainEvent) error

// envelope wraps a domain event for wire serialization.
type envelope struct {
	ID            string          `json:"id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Version       int             `json:"version"`
	Metadata      event.Metadata  `json:"metadata"`
	Payload       json.RawMessage `json:"payload"`
}

// RemoteEvent implements DomainEvent for facts reconstructed from the wire.
// Subscribers get the identity fields and raw payload; anyone needing the
// typed fact reloads it from the event store.
type RemoteEvent struct {
	env envelope
}

func (e *RemoteEvent) EventType() string        { return e.env.EventType }
func (e *RemoteEvent) AggregateID() string      { return e.env.AggregateID }
func (e *RemoteEvent) AggregateType() string    { return e.env.AggregateType }
func (e *RemoteEvent) OccurredAt() time.Time    { return e.env.OccurredAt }
func (e *RemoteEvent) Version() int             { return e.env.Version }
func (e *RemoteEvent) Metadata() event.Metadata { return e.env.Metadata }

// Payload returns the raw JSON payload of the event.
func (e *RemoteEvent) Payload() json.RawMessage { return e.env.Payload }

// RetryConfig configures retry behavior for event handling.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     defaultMaxRetries,
		InitialBackoff: defaultInitialBackoff,
		MaxBackoff:     defaultMaxBackoff,
		BackoffFactor:  defaultBackoffFactor,
	}
}

// RedisEventBus implements event.Bus using Redis Pub/Sub.
type RedisEventBus struct {
	client        *redis.Client
	pubsub        *redis.PubSub
	pubsubMu      sync.RWMutex
	handlers      map[string][]EventHandler
	handlersMu    sync.RWMutex
	running       bool
	runningMu     sync.RWMutex
	shutdown      chan struct{}
	wg            sync.WaitGroup
	logger        *slog.Logger
	retryConfig   RetryConfig
	channelPrefix string
}

// Option configures a RedisEventBus.
type Option func(*RedisEventBus)

// WithLogger sets the logger for the event bus.
func WithLogger(logger *slog.Logger) Option {
	return func(b *RedisEventBus) {
		b.logger = logger
	}
}

// WithRetryConfig sets the retry configuration for event handling.
func WithRetryConfig(config RetryConfig) Option {
	return func(b *RedisEventBus) {
		b.retryConfig = config
	}
}

// WithChannelPrefix sets a prefix for Redis channel names.
func WithChannelPrefix(prefix string) Option {
	return func(b *RedisEventBus) {
		b.channelPrefix = prefix
	}
}

// NewRedisEventBus creates a new Redis-based event bus.
func NewRedisEventBus(client *redis.Client, opts ...Option) *RedisEventBus {
	b := &RedisEventBus{
		client:        client,
		handlers:      make(map[string][]EventHandler),
		shutdown:      make(chan struct{}),
		logger:        slog.Default(),
		retryConfig:   DefaultRetryConfig(),
		channelPrefix: defaultChannelPrefix,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Publish publishes a domain event to Redis Pub/Sub.
func (b *RedisEventBus) Publish(ctx context.Context, evt event.DomainEvent) error {
	if evt == nil {
		return errors.New("event cannot be nil")
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	env := envelope{
		ID:            uuid.New().String(),
		EventType:     evt.EventType(),
		AggregateID:   evt.AggregateID(),
		AggregateType: evt.AggregateType(),
		OccurredAt:    evt.OccurredAt(),
		Version:       evt.Version(),
		Metadata:      evt.Metadata(),
		Payload:       payload,
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	channel := b.channelName(evt.EventType())

	if publishErr := b.client.Publish(ctx, channel, data).Err(); publishErr != nil {
		return fmt.Errorf("failed to publish event to Redis: %w", publishErr)
	}

	b.logger.DebugContext(ctx, "event published",
		slog.String("event_id", env.ID),
		slog.String("event_type", evt.EventType()),
		slog.String("aggregate_id", evt.AggregateID()),
		slog.String("channel", channel),
	)

	return nil
}

// Subscribe registers an event handler for a specific event type.
// Handlers are called concurrently when events are received.
func (b *RedisEventBus) Subscribe(eventType string, handler EventHandler) error {
	if eventType == "" {
		return errors.New("event type cannot be empty")
	}
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	return nil
}

// Start begins listening for events on subscribed channels.
// This method blocks until Shutdown is called or the context is cancelled.
func (b *RedisEventBus) Start(ctx context.Context) error {
	b.runningMu.Lock()
	if b.running {
		b.runningMu.Unlock()
		return errors.New("event bus is already running")
	}
	b.running = true
	b.runningMu.Unlock()

	channels := b.subscribedChannels()
	if len(channels) == 0 {
		b.logger.WarnContext(ctx, "starting event bus with no subscriptions")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.shutdown:
			return nil
		}
	}

	pubsub := b.client.Subscribe(ctx, channels...)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to channels: %w", err)
	}

	b.pubsubMu.Lock()
	b.pubsub = pubsub
	b.pubsubMu.Unlock()

	b.logger.InfoContext(ctx, "event bus started",
		slog.Int("channel_count", len(channels)),
		slog.Any("channels", channels),
	)

	msgCh := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			b.logger.InfoContext(ctx, "event bus stopping due to context cancellation")
			return ctx.Err()

		case <-b.shutdown:
			b.logger.InfoContext(ctx, "event bus stopping due to shutdown signal")
			return nil

		case msg, ok := <-msgCh:
			if !ok {
				b.logger.WarnContext(ctx, "message channel closed")
				return nil
			}
			b.handleMessage(ctx, msg)
		}
	}
}

// Shutdown gracefully stops the event bus.
// It waits for all pending event handlers to complete.
func (b *RedisEventBus) Shutdown() error {
	b.runningMu.Lock()
	if !b.running {
		b.runningMu.Unlock()
		return nil
	}
	b.running = false
	b.runningMu.Unlock()

	close(b.shutdown)

	b.wg.Wait()

	b.pubsubMu.Lock()
	pubsub := b.pubsub
	b.pubsub = nil
	b.pubsubMu.Unlock()

	if pubsub != nil {
		if err := pubsub.Close(); err != nil {
			return fmt.Errorf("failed to close pubsub: %w", err)
		}
	}

	return nil
}

// IsRunning returns true if the event bus is currently running.
func (b *RedisEventBus) IsRunning() bool {
	b.runningMu.RLock()
	defer b.runningMu.RUnlock()
	return b.running
}

// channelName returns the Redis channel name for an event type.
func (b *RedisEventBus) channelName(eventType string) string {
	return b.channelPrefix + eventType
}

// subscribedChannels returns all Redis channel names for subscribed event types.
func (b *RedisEventBus) subscribedChannels() []string {
	b.handlersMu.RLock()
	defer b.handlersMu.RUnlock()

	channels := make([]string, 0, len(b.handlers))
	for eventType := range b.handlers {
		channels = append(channels, b.channelName(eventType))
	}
	return channels
}

// handleMessage processes a message received from Redis.
func (b *RedisEventBus) handleMessage(ctx context.Context, msg *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		b.logger.ErrorContext(ctx, "failed to unmarshal event",
			slog.String("channel", msg.Channel),
			slog.String("error", err.Error()),
		)
		return
	}

	evt := &RemoteEvent{env: env}

	b.handlersMu.RLock()
	handlers := b.handlers[env.EventType]
	b.handlersMu.RUnlock()

	for i, handler := range handlers {
		b.wg.Add(1)
		go b.executeHandler(ctx, handler, evt, i)
	}
}

// executeHandler runs a single event handler with retry logic.
func (b *RedisEventBus) executeHandler(
	ctx context.Context,
	handler EventHandler,
	evt event.DomainEvent,
	handlerIndex int,
) {
	defer b.wg.Done()

	var lastErr error
	backoff := b.retryConfig.InitialBackoff

	for attempt := 0; attempt <= b.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				b.logger.WarnContext(ctx, "handler retry cancelled",
					slog.String("event_type", evt.EventType()),
					slog.String("error", ctx.Err().Error()),
				)
				return
			case <-time.After(backoff):
			}

			backoff = time.Duration(float64(backoff) * b.retryConfig.BackoffFactor)
			if backoff > b.retryConfig.MaxBackoff {
				backoff = b.retryConfig.MaxBackoff
			}
		}

		if err := handler(ctx, evt); err != nil {
			lastErr = err
			b.logger.WarnContext(ctx, "event handler failed",
				slog.String("event_type", evt.EventType()),
				slog.String("aggregate_id", evt.AggregateID()),
				slog.Int("handler_index", handlerIndex),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			continue
		}

		return
	}

	b.logger.ErrorContext(ctx, "event handler failed after all retries",
		slog.String("event_type", evt.EventType()),
		slog.String("aggregate_id", evt.AggregateID()),
		slog.Int("handler_index", handlerIndex),
		slog.Int("max_retries", b.retryConfig.MaxRetries),
		slog.String("error", lastErr.Error()),
	)
}

// Ensure RedisEventBus implements event.Bus
var _ event.Bus = (*RedisEventBus)(nil)
