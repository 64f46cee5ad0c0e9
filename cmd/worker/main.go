// Package main provides the projection worker entry point. The worker keeps
// the spec read models converged with the fact log: it follows the global
// stream from a saved checkpoint and reacts to bus notifications between
// polls. With --rebuild it discards the read models and replays everything.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/specd/internal/config"
	"github.com/lllypuk/specd/internal/infrastructure/eventbus"
	"github.com/lllypuk/specd/internal/infrastructure/eventstore"
	"github.com/lllypuk/specd/internal/infrastructure/projection"
	"github.com/lllypuk/specd/internal/infrastructure/projector"
)

const redisPingTimeout = 5 * time.Second

func main() {
	rebuild := flag.Bool("rebuild", false, "discard read models and replay the whole fact log before following it")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		//nolint:sloglint // No context available before logger setup
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := setupLogger(cfg)

	logger.Info("starting specd projection worker",
		slog.String("version", "0.1.0"),
		slog.String("environment", cfg.App.Environment),
		slog.Bool("rebuild", *rebuild),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go handleShutdown(cancel, logger)

	mongoClient, err := connectMongoDB(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to MongoDB", slog.String("error", err.Error()))
		cancel()
		os.Exit(1) //nolint:gocritic // cancel() called before exit
	}
	defer func() {
		if disconnectErr := mongoClient.Disconnect(context.Background()); disconnectErr != nil {
			logger.Error("failed to disconnect from MongoDB", slog.String("error", disconnectErr.Error()))
		}
	}()

	proj, err := setupProjector(ctx, mongoClient, cfg, logger)
	if err != nil {
		logger.Error("failed to setup projector", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if *rebuild {
		if rebuildErr := proj.RebuildAll(ctx); rebuildErr != nil {
			logger.Error("read model rebuild failed", slog.String("error", rebuildErr.Error()))
			os.Exit(1)
		}
	}

	bus, err := setupEventBus(ctx, cfg, proj, logger)
	if err != nil {
		logger.Error("failed to setup event bus", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var wg sync.WaitGroup

	// Follow the global fact stream.
	wg.Add(1)
	go func() {
		defer wg.Done()
		proj.Run(ctx, cfg.Projector.PollInterval)
	}()

	// React to bus notifications between polls.
	if bus != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if runErr := bus.Start(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
				logger.Error("event bus error", slog.String("error", runErr.Error()))
			}
		}()
		defer func() {
			if shutdownErr := bus.Shutdown(); shutdownErr != nil {
				logger.Error("event bus shutdown error", slog.String("error", shutdownErr.Error()))
			}
		}()
	}

	wg.Wait()

	logger.Info("projection worker shutdown complete")
}

// setupLogger creates and configures the structured logger based on configuration.
func setupLogger(cfg *config.Config) *slog.Logger {
	var handler slog.Handler

	level := parseLogLevel(cfg.Log.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.IsDevelopment(),
	}

	switch cfg.Log.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// connectMongoDB establishes a connection to MongoDB.
func connectMongoDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*mongo.Client, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.MongoDB.URI).
		SetMaxPoolSize(cfg.MongoDB.MaxPoolSize)

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, err
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, cfg.MongoDB.Timeout)
	defer pingCancel()

	if pingErr := client.Ping(pingCtx, nil); pingErr != nil {
		return nil, pingErr
	}

	logger.InfoContext(ctx, "connected to MongoDB",
		slog.String("database", cfg.MongoDB.Database),
	)

	return client, nil
}

// setupProjector wires the fact store, the projection store and the
// checkpointed projector on top of them.
func setupProjector(
	ctx context.Context,
	client *mongo.Client,
	cfg *config.Config,
	logger *slog.Logger,
) (*projector.SpecProjector, error) {
	eventStore := eventstore.NewMongoEventStore(client, cfg.MongoDB.Database, eventstore.WithLogger(logger))
	projections := projection.NewMongoStore(client, cfg.MongoDB.Database, projection.WithLogger(logger))

	indexCtx, indexCancel := context.WithTimeout(ctx, cfg.MongoDB.Timeout)
	defer indexCancel()

	if err := eventStore.EnsureIndexes(indexCtx); err != nil {
		return nil, err
	}
	if err := projections.EnsureIndexes(indexCtx); err != nil {
		return nil, err
	}

	checkpoints := projector.NewMongoCheckpointStore(client, cfg.MongoDB.Database)

	return projector.NewSpecProjector(
		eventStore,
		projections,
		checkpoints,
		projector.WithLogger(logger),
		projector.WithBatchSize(cfg.Projector.BatchSize),
	), nil
}

// setupEventBus connects to Redis and subscribes the projection handlers.
// Returns nil when the bus is configured as in-memory (the poll loop alone
// keeps the read models converged then).
func setupEventBus(
	ctx context.Context,
	cfg *config.Config,
	proj *projector.SpecProjector,
	logger *slog.Logger,
) (*eventbus.RedisEventBus, error) {
	if cfg.EventBus.Type == "inmemory" {
		logger.InfoContext(ctx, "event bus disabled, relying on the poll loop")
		return nil, nil
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	pingCtx, pingCancel := context.WithTimeout(ctx, redisPingTimeout)
	defer pingCancel()

	if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
		return nil, pingErr
	}

	logger.InfoContext(ctx, "connected to Redis", slog.String("addr", cfg.Redis.Addr))

	bus := eventbus.NewRedisEventBus(
		redisClient,
		eventbus.WithLogger(logger),
		eventbus.WithChannelPrefix(cfg.EventBus.RedisChannelPrefix),
	)

	projHandler := eventbus.NewProjectionHandler(proj, eventbus.WithProjectionLogger(logger))
	logHandler := eventbus.NewLoggingHandler(logger)

	if err := eventbus.RegisterSpecHandlers(bus, projHandler, logHandler); err != nil {
		return nil, err
	}

	return bus, nil
}

// handleShutdown listens for OS signals and cancels the context.
func handleShutdown(cancel context.CancelFunc, logger *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-quit
	logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	cancel()
}
