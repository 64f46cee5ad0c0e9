// Package main provides the API server entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/specd/internal/application/appcore"
	specapp "github.com/lllypuk/specd/internal/application/spec"
	"github.com/lllypuk/specd/internal/config"
	"github.com/lllypuk/specd/internal/domain/event"
	httphandler "github.com/lllypuk/specd/internal/handler/http"
	"github.com/lllypuk/specd/internal/infrastructure/eventbus"
	"github.com/lllypuk/specd/internal/infrastructure/eventstore"
	"github.com/lllypuk/specd/internal/infrastructure/projection"
	"github.com/lllypuk/specd/internal/infrastructure/projector"
)

// Container initialization timeouts.
const (
	containerInitTimeout   = 30 * time.Second
	redisPingTimeout       = 5 * time.Second
	mongoDisconnectTimeout = 10 * time.Second
)

// Container holds all application dependencies and manages their lifecycle.
type Container struct {
	// Configuration
	Config *config.Config
	Logger *slog.Logger

	// Infrastructure
	MongoDB     *mongo.Client
	MongoDBName string
	Redis       *redis.Client
	EventStore  appcore.EventStore
	Projections projection.Store
	Checkpoints projector.CheckpointStore
	Projector   *projector.SpecProjector
	Bus         event.Bus
	RedisBus    *eventbus.RedisEventBus

	// Application
	SpecService *specapp.Service

	// HTTP Handlers
	SpecHandler *httphandler.SpecHandler
}

// ContainerOption configures the Container.
type ContainerOption func(*Container)

// WithLogger sets a custom logger for the container.
func WithLogger(logger *slog.Logger) ContainerOption {
	return func(c *Container) {
		c.Logger = logger
	}
}

// NewContainer creates a new dependency injection container.
// The wiring mode (real/mock) is determined by config.App.Mode.
func NewContainer(cfg *config.Config, opts ...ContainerOption) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logWiringMode()

	if err := c.setupInfrastructure(); err != nil {
		// Clean up any partially initialized resources
		_ = c.Close()
		return nil, fmt.Errorf("failed to setup infrastructure: %w", err)
	}

	c.setupApplication()
	c.setupHTTPHandlers()

	if err := c.validateWiring(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("wiring validation failed: %w", err)
	}

	return c, nil
}

// logWiringMode logs the current wiring mode configuration.
func (c *Container) logWiringMode() {
	mode := c.Config.App.Mode
	if mode == "" {
		mode = config.AppModeReal
	}

	if c.Config.App.IsMockMode() {
		c.Logger.Warn("container starting in MOCK mode",
			slog.String("mode", string(mode)),
			slog.Bool("is_development", c.Config.IsDevelopment()),
		)
	} else {
		c.Logger.Info("container starting in REAL mode",
			slog.String("mode", string(mode)),
			slog.Bool("is_development", c.Config.IsDevelopment()),
		)
	}
}

// setupInfrastructure initializes storage, the projector and the event bus.
func (c *Container) setupInfrastructure() error {
	if c.Config.App.IsMockMode() {
		c.setupInMemoryInfrastructure()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), containerInitTimeout)
	defer cancel()

	if err := c.setupMongoDB(ctx); err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}

	if err := c.setupRedis(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	c.Checkpoints = projector.NewMongoCheckpointStore(c.MongoDB, c.MongoDBName)
	c.setupProjector()
	c.setupEventBus()

	return nil
}

// setupInMemoryInfrastructure wires everything in process, for development
// and tests. No Mongo, no Redis.
func (c *Container) setupInMemoryInfrastructure() {
	c.EventStore = eventstore.NewInMemoryEventStore()
	c.Projections = projection.NewInMemoryStore()
	c.Checkpoints = projector.NewInMemoryCheckpointStore()
	c.setupProjector()
	c.Bus = eventbus.NewInMemoryBus()

	c.Logger.Debug("in-memory infrastructure initialized")
}

// setupMongoDB initializes the MongoDB client, the event store and the
// projection store, and creates their indexes.
func (c *Container) setupMongoDB(ctx context.Context) error {
	clientOpts := options.Client().
		ApplyURI(c.Config.MongoDB.URI).
		SetMaxPoolSize(c.Config.MongoDB.MaxPoolSize)

	client, connectErr := mongo.Connect(clientOpts)
	if connectErr != nil {
		return fmt.Errorf("failed to connect: %w", connectErr)
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.Config.MongoDB.Timeout)
	defer cancel()

	if pingErr := client.Ping(pingCtx, nil); pingErr != nil {
		return fmt.Errorf("failed to ping: %w", pingErr)
	}

	c.MongoDB = client
	c.MongoDBName = c.Config.MongoDB.Database

	c.Logger.InfoContext(ctx, "connected to MongoDB",
		slog.String("database", c.Config.MongoDB.Database),
	)

	eventStore := eventstore.NewMongoEventStore(client, c.MongoDBName, eventstore.WithLogger(c.Logger))
	projections := projection.NewMongoStore(client, c.MongoDBName, projection.WithLogger(c.Logger))

	indexCtx, indexCancel := context.WithTimeout(ctx, c.Config.MongoDB.Timeout)
	defer indexCancel()

	if err := eventStore.EnsureIndexes(indexCtx); err != nil {
		return err
	}
	if err := projections.EnsureIndexes(indexCtx); err != nil {
		return err
	}

	c.EventStore = eventStore
	c.Projections = projections

	c.Logger.InfoContext(ctx, "MongoDB indexes created successfully")

	return nil
}

// setupRedis initializes the Redis client.
func (c *Container) setupRedis(ctx context.Context) error {
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
		PoolSize: c.Config.Redis.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()

	if pingErr := c.Redis.Ping(pingCtx).Err(); pingErr != nil {
		return fmt.Errorf("failed to ping: %w", pingErr)
	}

	c.Logger.InfoContext(ctx, "connected to Redis",
		slog.String("addr", c.Config.Redis.Addr),
	)

	return nil
}

// setupProjector initializes the read model projector.
func (c *Container) setupProjector() {
	c.Projector = projector.NewSpecProjector(
		c.EventStore,
		c.Projections,
		c.Checkpoints,
		projector.WithLogger(c.Logger),
		projector.WithBatchSize(c.Config.Projector.BatchSize),
	)
	c.Logger.Debug("projector initialized")
}

// setupEventBus initializes the event bus per configuration.
func (c *Container) setupEventBus() {
	if strings.ToLower(c.Config.EventBus.Type) == "inmemory" {
		c.Bus = eventbus.NewInMemoryBus()
		c.Logger.Debug("in-memory event bus initialized")
		return
	}

	bus := eventbus.NewRedisEventBus(
		c.Redis,
		eventbus.WithLogger(c.Logger),
		eventbus.WithChannelPrefix(c.Config.EventBus.RedisChannelPrefix),
	)
	c.RedisBus = bus
	c.Bus = bus

	c.Logger.Debug("event bus initialized",
		slog.String("type", c.Config.EventBus.Type),
		slog.String("prefix", c.Config.EventBus.RedisChannelPrefix),
	)
}

// setupApplication wires the use cases and the query service.
func (c *Container) setupApplication() {
	executor := specapp.NewBaseExecutor(
		c.EventStore,
		c.Projector,
		specapp.WithEventBus(c.Bus),
		specapp.WithLogger(c.Logger),
	)

	queries := specapp.NewQueries(c.EventStore, c.Projections)

	c.SpecService = specapp.NewService(
		specapp.NewCreateSpecUseCase(executor),
		specapp.NewUpdateSpecUseCase(executor),
		specapp.NewPublishSpecUseCase(executor),
		specapp.NewDeprecateSpecUseCase(executor),
		specapp.NewDeleteSpecUseCase(executor),
		queries,
	)
}

// setupHTTPHandlers wires the REST handlers.
func (c *Container) setupHTTPHandlers() {
	c.SpecHandler = httphandler.NewSpecHandler(c.SpecService)
}

// StartEventBus subscribes the spec handlers and starts the Redis listener.
// The API process consumes its own notifications so that read models converge
// even when another writer's synchronous projection failed.
func (c *Container) StartEventBus(ctx context.Context) error {
	if c.RedisBus == nil {
		c.Logger.Debug("no redis event bus configured, skipping listener")
		return nil
	}

	projHandler := eventbus.NewProjectionHandler(
		c.Projector,
		eventbus.WithProjectionLogger(c.Logger),
	)
	logHandler := eventbus.NewLoggingHandler(c.Logger)

	if err := eventbus.RegisterSpecHandlers(c.RedisBus, projHandler, logHandler); err != nil {
		return err
	}

	go func() {
		if err := c.RedisBus.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.Logger.Error("event bus stopped with error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// validateWiring ensures all required dependencies are properly initialized.
func (c *Container) validateWiring() error {
	var errs []error

	if c.EventStore == nil {
		errs = append(errs, errors.New("event store not initialized"))
	}
	if c.Projections == nil {
		errs = append(errs, errors.New("projection store not initialized"))
	}
	if c.Projector == nil {
		errs = append(errs, errors.New("projector not initialized"))
	}
	if c.Bus == nil {
		errs = append(errs, errors.New("event bus not initialized"))
	}
	if c.SpecService == nil {
		errs = append(errs, errors.New("spec service not initialized"))
	}
	if c.SpecHandler == nil {
		errs = append(errs, errors.New("spec handler not initialized"))
	}

	if c.Config.App.IsRealMode() {
		if c.MongoDB == nil {
			errs = append(errs, errors.New("mongodb client not initialized in real mode"))
		}
		if c.Redis == nil {
			errs = append(errs, errors.New("redis client not initialized in real mode"))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Ready reports whether the container's backing services are reachable.
// In mock mode everything is in process, so it always succeeds.
func (c *Container) Ready(ctx context.Context) error {
	if c.MongoDB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, c.Config.MongoDB.Timeout)
		defer cancel()

		if err := c.MongoDB.Ping(pingCtx, nil); err != nil {
			return fmt.Errorf("mongodb: %w", err)
		}
	}

	if c.Redis != nil {
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()

		if err := c.Redis.Ping(pingCtx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	return nil
}

// Close releases container resources in reverse dependency order.
func (c *Container) Close() error {
	var errs []error

	if c.RedisBus != nil {
		if err := c.RedisBus.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("event bus shutdown: %w", err))
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}

	if c.MongoDB != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mongoDisconnectTimeout)
		defer cancel()

		if err := c.MongoDB.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect: %w", err))
		}
	}

	return errors.Join(errs...)
}
