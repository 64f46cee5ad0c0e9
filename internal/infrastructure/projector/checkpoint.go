package projector

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	checkpointsCollection = "projection_checkpoints"
	specCheckpointID      = "spec_read_models"
)

// CheckpointStore persists the projector's position in the global fact
// stream, so catch-up after a restart resumes where it left off.
type CheckpointStore interface {
	Load(ctx context.Context) (int64, error)
	Save(ctx context.Context, cursor int64) error
}

// MongoCheckpointStore keeps the checkpoint in a MongoDB collection.
type MongoCheckpointStore struct {
	collection *mongo.Collection
}

// NewMongoCheckpointStore creates a new MongoDB checkpoint store.
func NewMongoCheckpointStore(client *mongo.Client, databaseName string) *MongoCheckpointStore {
	return &MongoCheckpointStore{
		collection: client.Database(databaseName).Collection(checkpointsCollection),
	}
}

// Load returns the saved cursor, 0 when no checkpoint exists yet.
func (s *MongoCheckpointStore) Load(ctx context.Context) (int64, error) {
	var doc struct {
		Cursor int64 `bson:"cursor"`
	}
	err := s.collection.FindOne(ctx, bson.M{"_id": specCheckpointID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to load projection checkpoint: %w", err)
	}
	return doc.Cursor, nil
}

// Save stores the cursor, creating the checkpoint document on first use.
func (s *MongoCheckpointStore) Save(ctx context.Context, cursor int64) error {
	filter := bson.M{"_id": specCheckpointID}
	update := bson.M{"$set": bson.M{"cursor": cursor}}
	opts := options.UpdateOne().SetUpsert(true)

	if _, err := s.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save projection checkpoint: %w", err)
	}
	return nil
}

// InMemoryCheckpointStore keeps the checkpoint in memory, for tests and mock
// wiring mode.
type InMemoryCheckpointStore struct {
	mu     sync.Mutex
	cursor int64
}

// NewInMemoryCheckpointStore creates a new in-memory checkpoint store.
func NewInMemoryCheckpointStore() *InMemoryCheckpointStore {
	return &InMemoryCheckpointStore{}
}

func (s *InMemoryCheckpointStore) Load(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, nil
}

func (s *InMemoryCheckpointStore) Save(_ context.Context, cursor int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = cursor
	return nil
}

var (
	_ CheckpointStore = (*MongoCheckpointStore)(nil)
	_ CheckpointStore = (*InMemoryCheckpointStore)(nil)
)
