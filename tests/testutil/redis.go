package testutil

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	redisCtxTimeout                = 10 * time.Second
	redisContainerStartupTimeout   = 60 * time.Second
	redisContainerTerminateTimeout = 5 * time.Second
	redisTestPoolSize              = 10
)

var (
	sharedRedis     *SharedRedisContainer
	sharedRedisOnce sync.Once
	errSharedRedis  error
)

// SharedRedisContainer is a Redis container reused across all tests in a
// binary.
type SharedRedisContainer struct {
	Container testcontainers.Container
	Addr      string
}

// GetSharedRedisContainer starts the singleton Redis container on first use.
func GetSharedRedisContainer(ctx context.Context) (*SharedRedisContainer, error) {
	sharedRedisOnce.Do(func() {
		sharedRedis, errSharedRedis = startRedisContainer(ctx)
	})

	return sharedRedis, errSharedRedis
}

func startRedisContainer(ctx context.Context) (*SharedRedisContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Ready to accept connections").WithStartupTimeout(redisContainerStartupTimeout),
			wait.ForListeningPort("6379/tcp").WithStartupTimeout(redisContainerStartupTimeout),
		),
	}

	cont, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Redis container: %w", err)
	}

	host, err := cont.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := cont.MappedPort(ctx, "6379")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	return &SharedRedisContainer{
		Container: cont,
		Addr:      net.JoinHostPort(host, port.Port()),
	}, nil
}

// SetupTestRedis returns a Redis client backed by the shared container. The
// database is flushed and the client closed when the test finishes.
func SetupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), redisContainerStartupTimeout)
	defer cancel()

	cont, err := GetSharedRedisContainer(ctx)
	if err != nil {
		t.Fatalf("Failed to get shared Redis container: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cont.Addr,
		PoolSize: redisTestPoolSize,
	})

	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		t.Fatalf("Failed to ping Redis: %v", pingErr)
	}

	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), redisCtxTimeout)
		defer cleanupCancel()
		_ = client.FlushDB(cleanupCtx).Err()
		_ = client.Close()
	})

	return client
}

// CleanupSharedRedisContainer terminates the shared container.
func CleanupSharedRedisContainer() {
	if sharedRedis != nil && sharedRedis.Container != nil {
		ctx, cancel := context.WithTimeout(context.Background(), redisContainerTerminateTimeout)
		defer cancel()
		_ = sharedRedis.Container.Terminate(ctx)
	}
}
