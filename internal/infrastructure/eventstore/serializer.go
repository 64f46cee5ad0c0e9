package eventstore

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/lllypuk/specd/internal/domain/event"
	specdomain "github.com/lllypuk/specd/internal/domain/spec"
)

// EventDocument is the MongoDB representation of a stored fact.
type EventDocument struct {
	ID bson.ObjectID `bson:"_id,omitempty"`

	// GlobalSeq is the position in the stable global append order, assigned
	// from the counters collection inside the append transaction.
	GlobalSeq int64 `bson:"global_seq"`

	EventID       string                `bson:"event_id"`
	AggregateID   string                `bson:"aggregate_id"`
	AggregateType string                `bson:"aggregate_type"`
	EventType     string                `bson:"event_type"`
	Version       int                   `bson:"version"`
	Data          bson.M                `bson:"data"`
	Metadata      EventMetadataDocument `bson:"metadata"`
	OccurredAt    time.Time             `bson:"occurred_at"`
	CreatedAt     time.Time             `bson:"created_at"`
}

// EventMetadataDocument is the MongoDB representation of event metadata.
type EventMetadataDocument struct {
	Timestamp     time.Time `bson:"timestamp"`
	UserID        string    `bson:"user_id,omitempty"`
	CorrelationID string    `bson:"correlation_id,omitempty"`
	CausationID   string    `bson:"causation_id,omitempty"`
	IPAddress     string    `bson:"ip_address,omitempty"`
	UserAgent     string    `bson:"user_agent,omitempty"`
}

// EventSerializer converts domain events to and from MongoDB documents.
type EventSerializer struct{}

// NewEventSerializer creates a new event serializer.
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{}
}

// Serialize converts a domain event into a MongoDB document. The payload goes
// through JSON for reliable handling of pointer and enum fields.
func (s *EventSerializer) Serialize(e event.DomainEvent) (*EventDocument, error) {
	jsonData, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event to JSON: %w", err)
	}

	var dataMap bson.M
	if err2 := json.Unmarshal(jsonData, &dataMap); err2 != nil {
		return nil, fmt.Errorf("failed to unmarshal event to map: %w", err2)
	}

	metadata := e.Metadata()
	metadataDoc := EventMetadataDocument{
		Timestamp:     metadata.Timestamp,
		UserID:        metadata.UserID,
		CorrelationID: metadata.CorrelationID,
		CausationID:   metadata.CausationID,
		IPAddress:     metadata.IPAddress,
		UserAgent:     metadata.UserAgent,
	}

	return &EventDocument{
		AggregateID:   e.AggregateID(),
		AggregateType: e.AggregateType(),
		EventType:     e.EventType(),
		Version:       e.Version(),
		Data:          dataMap,
		Metadata:      metadataDoc,
		OccurredAt:    e.OccurredAt(),
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// SerializeMany serializes several events at once.
func (s *EventSerializer) SerializeMany(events []event.DomainEvent) ([]*EventDocument, error) {
	documents := make([]*EventDocument, 0, len(events))

	for i, e := range events {
		doc, err := s.Serialize(e)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize event at index %d: %w", i, err)
		}
		documents = append(documents, doc)
	}

	return documents, nil
}

// Deserialize converts a MongoDB document back into a typed domain event.
// The restored event carries the originally recorded timestamp and sequence
// number, never fresh ones.
func (s *EventSerializer) Deserialize(doc *EventDocument) (event.DomainEvent, error) {
	jsonData, err := bson.MarshalExtJSON(doc.Data, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal BSON data: %w", err)
	}

	metadata := event.Metadata{
		Timestamp:     doc.Metadata.Timestamp,
		UserID:        doc.Metadata.UserID,
		CorrelationID: doc.Metadata.CorrelationID,
		CausationID:   doc.Metadata.CausationID,
		IPAddress:     doc.Metadata.IPAddress,
		UserAgent:     doc.Metadata.UserAgent,
	}

	base := event.RestoreBaseEvent(
		doc.EventType,
		doc.AggregateID,
		doc.AggregateType,
		doc.Version,
		doc.OccurredAt,
		metadata,
	)

	switch doc.EventType {
	case specdomain.EventTypeSpecCreated:
		var e specdomain.Created
		if unmarshalErr := json.Unmarshal(jsonData, &e); unmarshalErr != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", doc.EventType, unmarshalErr)
		}
		e.BaseEvent = base
		return &e, nil

	case specdomain.EventTypeSpecUpdated:
		var e specdomain.ContentUpdated
		if unmarshalErr := json.Unmarshal(jsonData, &e); unmarshalErr != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", doc.EventType, unmarshalErr)
		}
		e.BaseEvent = base
		return &e, nil

	case specdomain.EventTypeStateChanged:
		var e specdomain.StateChanged
		if unmarshalErr := json.Unmarshal(jsonData, &e); unmarshalErr != nil {
			return nil, fmt.Errorf("failed to unmarshal %s payload: %w", doc.EventType, unmarshalErr)
		}
		e.BaseEvent = base
		return &e, nil

	default:
		return nil, fmt.Errorf("unknown event type: %s", doc.EventType)
	}
}

// DeserializeMany deserializes several documents at once.
func (s *EventSerializer) DeserializeMany(docs []*EventDocument) ([]event.DomainEvent, error) {
	events := make([]event.DomainEvent, 0, len(docs))

	for i, doc := range docs {
		evt, err := s.Deserialize(doc)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize event at index %d: %w", i, err)
		}
		events = append(events, evt)
	}

	return events, nil
}
