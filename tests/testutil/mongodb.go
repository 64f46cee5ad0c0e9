// Package testutil provides shared container helpers for integration tests.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	mongoCtxTimeout                = 5 * time.Second
	mongoPingTimeout               = 2 * time.Second
	mongoPingRetryDelay            = 500 * time.Millisecond
	mongoContainerStartupTimeout   = 60 * time.Second
	mongoContainerTerminateTimeout = 10 * time.Second
	maxTestNameLength              = 40
)

var (
	sharedMongo     *SharedMongoContainer
	sharedMongoOnce sync.Once
	errSharedMongo  error
)

// SharedMongoContainer is a MongoDB container reused across all tests in a
// binary. Each test gets its own database inside it.
type SharedMongoContainer struct {
	Container testcontainers.Container
	URI       string
}

// GetSharedMongoContainer starts the singleton MongoDB container on first use.
func GetSharedMongoContainer(ctx context.Context) (*SharedMongoContainer, error) {
	sharedMongoOnce.Do(func() {
		sharedMongo, errSharedMongo = startMongoContainer(ctx)
	})

	return sharedMongo, errSharedMongo
}

func startMongoContainer(ctx context.Context) (*SharedMongoContainer, error) {
	// The event store appends inside a transaction, which MongoDB only
	// supports on replica sets, so the container runs a single-node one.
	req := testcontainers.ContainerRequest{
		Image:        "mongo:8",
		Name:         "specd-test-mongodb", // Required for Reuse mode
		ExposedPorts: []string{"27017/tcp"},
		Cmd:          []string{"--replSet", "rs0", "--bind_ip_all"},
		WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(mongoContainerStartupTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
		Reuse:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start MongoDB container: %w", err)
	}

	if err = initReplicaSet(ctx, container); err != nil {
		return nil, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	uri := fmt.Sprintf("mongodb://%s/?directConnection=true", net.JoinHostPort(host, port.Port()))

	return &SharedMongoContainer{Container: container, URI: uri}, nil
}

// initReplicaSet initiates the single-node replica set. Safe to call against
// a reused container where the set is already initiated.
func initReplicaSet(ctx context.Context, container testcontainers.Container) error {
	script := "try { rs.status().ok } catch (e) { rs.initiate() }"
	code, _, err := container.Exec(ctx, []string{"mongosh", "--quiet", "--eval", script})
	if err != nil {
		return fmt.Errorf("failed to initiate replica set: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("replica set initiation exited with code %d", code)
	}
	return nil
}

// SetupTestMongoDB returns a client and a test-scoped database inside the
// shared container. The database is dropped and the client disconnected when
// the test finishes.
func SetupTestMongoDB(t *testing.T) (*mongo.Client, *mongo.Database) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), mongoContainerStartupTimeout)
	defer cancel()

	container, err := GetSharedMongoContainer(ctx)
	if err != nil {
		t.Fatalf("Failed to get shared MongoDB container: %v", err)
	}

	client, err := mongo.Connect(options.Client().ApplyURI(container.URI))
	if err != nil {
		t.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	maxRetries := 5
	for i := range maxRetries {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), mongoPingTimeout)
		err = client.Ping(pingCtx, nil)
		pingCancel()
		if err == nil {
			break
		}
		if i < maxRetries-1 {
			time.Sleep(mongoPingRetryDelay)
		}
	}
	if err != nil {
		t.Fatalf("Failed to ping MongoDB after %d retries: %v", maxRetries, err)
	}

	dbName := generateTestDBName(t.Name())
	db := client.Database(dbName)

	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), mongoCtxTimeout)
		defer cleanupCancel()
		_ = db.Drop(cleanupCtx)
		_ = client.Disconnect(cleanupCtx)
	})

	return client, db
}

// generateTestDBName creates a unique database name from the test name.
// MongoDB database names are limited to 63 characters.
func generateTestDBName(testName string) string {
	if len(testName) > maxTestNameLength {
		hash := sha256.Sum256([]byte(testName))
		testName = testName[:20] + "_" + hex.EncodeToString(hash[:])[:12]
	}
	return "specd_test_" + testName
}

// CleanupSharedMongoContainer terminates the shared container. With
// Reuse=true the container may persist for faster subsequent runs.
func CleanupSharedMongoContainer() {
	if sharedMongo != nil && sharedMongo.Container != nil {
		ctx, cancel := context.WithTimeout(context.Background(), mongoContainerTerminateTimeout)
		defer cancel()
		_ = sharedMongo.Container.Terminate(ctx)
	}
}
