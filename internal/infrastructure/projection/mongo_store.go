package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/specd/internal/domain/event"
	"github.com/lllypuk/specd/internal/domain/spec"
	"github.com/lllypuk/specd/internal/domain/uuid"
)

const readModelCollection = "spec_read_models"

// MongoStore implements Store over MongoDB.
type MongoStore struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// Option configures MongoStore.
type Option func(*MongoStore)

// WithLogger sets the logger for the projection store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *MongoStore) {
		s.logger = logger
	}
}

// NewMongoStore creates a new MongoDB projection store.
func NewMongoStore(client *mongo.Client, databaseName string, opts ...Option) *MongoStore {
	s := &MongoStore{
		collection: client.Database(databaseName).Collection(readModelCollection),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// EnsureIndexes creates the query indexes. Call once at startup.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "state", Value: 1}}},
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create projection indexes: %w", err)
	}
	return nil
}

// Apply folds one fact into the read model, idempotently.
func (s *MongoStore) Apply(ctx context.Context, evt event.DomainEvent) error {
	seq := evt.Version()

	current, err := s.find(ctx, evt.AggregateID())
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	if current != nil {
		if seq <= current.LastAppliedSeq {
			return nil // already applied, at-least-once delivery no-op
		}
		if seq != current.LastAppliedSeq+1 {
			return fmt.Errorf("%w: read model at %d, fact at %d", ErrSequenceGap, current.LastAppliedSeq, seq)
		}
	} else if seq != 1 {
		return fmt.Errorf("%w: no read model, fact at %d", ErrSequenceGap, seq)
	}

	next, err := foldEvent(current, evt)
	if err != nil {
		return err
	}

	if current == nil {
		if _, errInsert := s.collection.InsertOne(ctx, next); errInsert != nil {
			if mongo.IsDuplicateKeyError(errInsert) {
				return nil // another updater created it first
			}
			return fmt.Errorf("failed to insert read model: %w", errInsert)
		}
		return nil
	}

	// The last_applied_seq filter makes the write conditional: if another
	// updater advanced the model concurrently, this replace matches nothing
	// and the fact is treated as already applied.
	filter := bson.M{"_id": next.ID, "last_applied_seq": current.LastAppliedSeq}
	if _, errReplace := s.collection.ReplaceOne(ctx, filter, next); errReplace != nil {
		return fmt.Errorf("failed to update read model: %w", errReplace)
	}

	s.logger.DebugContext(ctx, "read model updated",
		slog.String("spec_id", next.ID),
		slog.Int("version", next.Version),
		slog.String("state", next.State),
	)

	return nil
}

// Get returns the read model for a spec id.
func (s *MongoStore) Get(ctx context.Context, id uuid.UUID) (*SpecReadModel, error) {
	return s.find(ctx, id.String())
}

// GetByName returns the read model with the given spec name.
func (s *MongoStore) GetByName(ctx context.Context, name string) (*SpecReadModel, error) {
	var model SpecReadModel
	err := s.collection.FindOne(ctx, bson.M{"name": name}).Decode(&model)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find read model by name: %w", err)
	}
	return &model, nil
}

// List returns read models matching the filter, newest-updated first.
func (s *MongoStore) List(ctx context.Context, filter ListFilter) ([]*SpecReadModel, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	if filter.Limit > 0 {
		opts = opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts = opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := s.collection.Find(ctx, listQuery(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list read models: %w", err)
	}
	defer cursor.Close(ctx)

	var models []*SpecReadModel
	if err = cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("failed to decode read models: %w", err)
	}

	if models == nil {
		models = make([]*SpecReadModel, 0)
	}

	return models, nil
}

// Count returns the number of read models matching the filter.
func (s *MongoStore) Count(ctx context.Context, filter ListFilter) (int64, error) {
	count, err := s.collection.CountDocuments(ctx, listQuery(filter))
	if err != nil {
		return 0, fmt.Errorf("failed to count read models: %w", err)
	}
	return count, nil
}

// LastAppliedSeq returns the last applied sequence for an aggregate.
func (s *MongoStore) LastAppliedSeq(ctx context.Context, id uuid.UUID) (int, error) {
	model, err := s.find(ctx, id.String())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return model.LastAppliedSeq, nil
}

// Reset discards all read models.
func (s *MongoStore) Reset(ctx context.Context) error {
	if _, err := s.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to reset projection store: %w", err)
	}
	return nil
}

func (s *MongoStore) find(ctx context.Context, id string) (*SpecReadModel, error) {
	var model SpecReadModel
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&model)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find read model: %w", err)
	}
	return &model, nil
}

// listQuery translates a ListFilter into a MongoDB filter. Without an
// explicit state filter, deleted specs are excluded from listings.
func listQuery(filter ListFilter) bson.M {
	if filter.State != nil {
		return bson.M{"state": filter.State.String()}
	}
	return bson.M{"state": bson.M{"$ne": spec.StateDeleted.String()}}
}

// Ensure MongoStore implements Store
var _ Store = (*MongoStore)(nil)
