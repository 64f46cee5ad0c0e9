// Package eventstore implements the append-only fact log over MongoDB, plus
// an in-memory variant for tests and mock wiring.
package eventstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/lllypuk/specd/internal/application/appcore"
	"github.com/lllypuk/specd/internal/domain/event"
)

const (
	eventsCollection   = "events"
	countersCollection = "counters"
	globalSeqCounterID = "events_global_seq"
)

// MongoEventStore implements appcore.EventStore using MongoDB.
//
// The expected-version check and the insert happen in one transaction; a
// unique index on (aggregate_id, version) backstops the check so a losing
// writer always surfaces ErrConcurrencyConflict, never a silent overwrite.
type MongoEventStore struct {
	client     *mongo.Client
	database   *mongo.Database
	collection *mongo.Collection
	counters   *mongo.Collection
	serializer *EventSerializer
	logger     *slog.Logger
}

// Option configures MongoEventStore.
type Option func(*MongoEventStore)

// WithLogger sets the logger for the event store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *MongoEventStore) {
		s.logger = logger
	}
}

// NewMongoEventStore creates a new MongoDB event store.
func NewMongoEventStore(client *mongo.Client, databaseName string, opts ...Option) *MongoEventStore {
	database := client.Database(databaseName)

	s := &MongoEventStore{
		client:     client,
		database:   database,
		collection: database.Collection(eventsCollection),
		counters:   database.Collection(countersCollection),
		serializer: NewEventSerializer(),
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// EnsureIndexes creates the indexes the store relies on. Call once at startup.
func (s *MongoEventStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "aggregate_id", Value: 1}, {Key: "version", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "global_seq", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "aggregate_id", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create event store indexes: %w", err)
	}
	return nil
}

// AppendEvents saves events for an aggregate under the expected-version guard.
func (s *MongoEventStore) AppendEvents(
	ctx context.Context,
	aggregateID string,
	events []event.DomainEvent,
	expectedVersion int,
) error {
	if len(events) == 0 {
		return nil
	}

	session, err := s.client.StartSession()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to start MongoDB session for event store",
			slog.String("aggregate_id", aggregateID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
		currentVersion, errVersion := s.currentVersion(txCtx, aggregateID)
		if errVersion != nil {
			return nil, errVersion
		}

		if currentVersion != expectedVersion {
			s.logger.WarnContext(ctx, "concurrency conflict in event store",
				slog.String("aggregate_id", aggregateID),
				slog.Int("expected_version", expectedVersion),
				slog.Int("current_version", currentVersion),
			)
			return nil, appcore.ErrConcurrencyConflict
		}

		documents, errSerialize := s.serializer.SerializeMany(events)
		if errSerialize != nil {
			return nil, errSerialize
		}

		// Reserve a block of global sequence numbers in the same transaction
		// so global order never diverges from commit order.
		lastSeq, errSeq := s.reserveGlobalSeq(txCtx, int64(len(documents)))
		if errSeq != nil {
			return nil, errSeq
		}

		docs := make([]any, len(documents))
		for i, doc := range documents {
			doc.EventID = uuid.New().String()
			doc.GlobalSeq = lastSeq - int64(len(documents)) + int64(i) + 1
			docs[i] = doc
		}

		if _, errInsert := s.collection.InsertMany(txCtx, docs); errInsert != nil {
			if mongo.IsDuplicateKeyError(errInsert) {
				s.logger.WarnContext(ctx, "duplicate key error in event store (concurrency)",
					slog.String("aggregate_id", aggregateID),
					slog.Int("events_count", len(events)),
				)
				return nil, appcore.ErrConcurrencyConflict
			}
			return nil, fmt.Errorf("failed to insert events: %w", errInsert)
		}

		return nil, nil //nolint:nilnil // Transaction success returns nil for both values
	})

	if err != nil && !errors.Is(err, appcore.ErrConcurrencyConflict) {
		s.logger.ErrorContext(ctx, "event store transaction failed",
			slog.String("aggregate_id", aggregateID),
			slog.Int("events_count", len(events)),
			slog.String("error", err.Error()),
		)
	}

	return err
}

// LoadEvents loads all events for an aggregate in ascending sequence order.
func (s *MongoEventStore) LoadEvents(ctx context.Context, aggregateID string) ([]event.DomainEvent, error) {
	return s.loadEvents(ctx, bson.M{"aggregate_id": aggregateID})
}

// LoadEventsUpTo loads events with sequence number <= maxVersion.
func (s *MongoEventStore) LoadEventsUpTo(
	ctx context.Context,
	aggregateID string,
	maxVersion int,
) ([]event.DomainEvent, error) {
	if maxVersion < 1 {
		return nil, appcore.ErrInvalidVersion
	}
	return s.loadEvents(ctx, bson.M{
		"aggregate_id": aggregateID,
		"version":      bson.M{"$lte": maxVersion},
	})
}

func (s *MongoEventStore) loadEvents(ctx context.Context, filter bson.M) ([]event.DomainEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "version", Value: 1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to find events in event store",
			slog.Any("filter", filter),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to find events: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*EventDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}

	if len(docs) == 0 {
		return nil, appcore.ErrAggregateNotFound
	}

	return s.serializer.DeserializeMany(docs)
}

// GetVersion returns the current aggregate version, 0 if absent.
func (s *MongoEventStore) GetVersion(ctx context.Context, aggregateID string) (int, error) {
	return s.currentVersion(ctx, aggregateID)
}

// ReadAllSince returns events across all aggregates in global append order.
func (s *MongoEventStore) ReadAllSince(
	ctx context.Context,
	afterCursor int64,
	limit int,
) ([]appcore.RecordedEvent, error) {
	filter := bson.M{"global_seq": bson.M{"$gt": afterCursor}}
	opts := options.Find().SetSort(bson.D{{Key: "global_seq", Value: 1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read global event stream: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*EventDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode global event stream: %w", err)
	}

	recorded := make([]appcore.RecordedEvent, 0, len(docs))
	for _, doc := range docs {
		evt, errDeserialize := s.serializer.Deserialize(doc)
		if errDeserialize != nil {
			return nil, errDeserialize
		}
		recorded = append(recorded, appcore.RecordedEvent{
			Cursor:  doc.GlobalSeq,
			EventID: doc.EventID,
			Event:   evt,
		})
	}

	return recorded, nil
}

// currentVersion returns the highest stored sequence number for an aggregate.
func (s *MongoEventStore) currentVersion(ctx context.Context, aggregateID string) (int, error) {
	filter := bson.M{"aggregate_id": aggregateID}
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})

	var doc EventDocument
	err := s.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil // no events yet
		}
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}

	return doc.Version, nil
}

// reserveGlobalSeq atomically advances the global sequence counter by n and
// returns the last reserved value.
func (s *MongoEventStore) reserveGlobalSeq(ctx context.Context, n int64) (int64, error) {
	filter := bson.M{"_id": globalSeqCounterID}
	update := bson.M{"$inc": bson.M{"value": n}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Value int64 `bson:"value"`
	}
	if err := s.counters.FindOneAndUpdate(ctx, filter, update, opts).Decode(&counter); err != nil {
		return 0, fmt.Errorf("failed to reserve global sequence: %w", err)
	}

	return counter.Value, nil
}

// Ensure MongoEventStore implements appcore.EventStore
var _ appcore.EventStore = (*MongoEventStore)(nil)
