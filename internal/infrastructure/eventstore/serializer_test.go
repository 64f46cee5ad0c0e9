package eventstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/specd/internal/domain/event"
	"github.com/lllypuk/specd/internal/domain/spec"
	"github.com/lllypuk/specd/internal/domain/uuid"
	"github.com/lllypuk/specd/internal/infrastructure/eventstore"
)

func strPtr(s string) *string { return &s }

func TestEventSerializer_RoundTrip(t *testing.T) {
	serializer := eventstore.NewEventSerializer()
	specID := uuid.NewUUID()
	metadata := event.NewMetadata("alice", "corr-1", "cause-1")

	t.Run("created", func(t *testing.T) {
		original := spec.NewSpecCreated(specID, "payments-api", "openapi: 3.0.0", strPtr("contract"), metadata)

		doc, err := serializer.Serialize(original)
		require.NoError(t, err)
		assert.Equal(t, spec.EventTypeSpecCreated, doc.EventType)
		assert.Equal(t, specID.String(), doc.AggregateID)
		assert.Equal(t, 1, doc.Version)

		restored, err := serializer.Deserialize(doc)
		require.NoError(t, err)

		created, ok := restored.(*spec.Created)
		require.True(t, ok)
		assert.Equal(t, original.Name, created.Name)
		assert.Equal(t, original.Content, created.Content)
		require.NotNil(t, created.Description)
		assert.Equal(t, "contract", *created.Description)
		assert.Equal(t, original.Version(), created.Version())
		assert.Equal(t, "alice", created.Metadata().UserID)
		assert.Equal(t, "corr-1", created.Metadata().CorrelationID)
		// Mongo stores millisecond precision; the serializer path keeps the
		// original time exactly.
		assert.True(t, original.OccurredAt().Equal(created.OccurredAt()))
	})

	t.Run("content updated without description", func(t *testing.T) {
		original := spec.NewContentUpdated(specID, 2, "openapi: 3.1.0", nil, metadata)

		doc, err := serializer.Serialize(original)
		require.NoError(t, err)

		restored, err := serializer.Deserialize(doc)
		require.NoError(t, err)

		updated, ok := restored.(*spec.ContentUpdated)
		require.True(t, ok)
		assert.Equal(t, "openapi: 3.1.0", updated.Content)
		assert.Nil(t, updated.Description)
		assert.Equal(t, 2, updated.Version())
	})

	t.Run("state changed with reason", func(t *testing.T) {
		original := spec.NewStateChanged(specID, 3, spec.StatePublished, spec.StateDeprecated, strPtr("superseded"), metadata)

		doc, err := serializer.Serialize(original)
		require.NoError(t, err)

		restored, err := serializer.Deserialize(doc)
		require.NoError(t, err)

		changed, ok := restored.(*spec.StateChanged)
		require.True(t, ok)
		assert.Equal(t, spec.StatePublished, changed.FromState)
		assert.Equal(t, spec.StateDeprecated, changed.ToState)
		require.NotNil(t, changed.Reason)
		assert.Equal(t, "superseded", *changed.Reason)
	})

	t.Run("client metadata survives the round trip", func(t *testing.T) {
		id := uuid.MustParseUUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
		audited := event.NewMetadata("alice", "corr-1", "").
			WithIPAddress("203.0.113.7").
			WithUserAgent("specd-cli/1.2")
		original := spec.NewSpecCreated(id, "payments-api", "openapi: 3.0.0", nil, audited)

		doc, err := serializer.Serialize(original)
		require.NoError(t, err)
		assert.Equal(t, "203.0.113.7", doc.Metadata.IPAddress)
		assert.Equal(t, "specd-cli/1.2", doc.Metadata.UserAgent)

		restored, err := serializer.Deserialize(doc)
		require.NoError(t, err)
		assert.Equal(t, "203.0.113.7", restored.Metadata().IPAddress)
		assert.Equal(t, "specd-cli/1.2", restored.Metadata().UserAgent)
	})

	t.Run("unknown event type", func(t *testing.T) {
		original := spec.NewSpecCreated(specID, "s", "a: 1", nil, metadata)
		doc, err := serializer.Serialize(original)
		require.NoError(t, err)
		doc.EventType = "spec.unknown"

		_, err = serializer.Deserialize(doc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown event type")
	})
}

func TestEventSerializer_Many(t *testing.T) {
	serializer := eventstore.NewEventSerializer()
	specID := uuid.NewUUID()
	metadata := event.NewMetadata("alice", "corr-1", "")

	events := []event.DomainEvent{
		spec.NewSpecCreated(specID, "s", "a: 1", nil, metadata),
		spec.NewContentUpdated(specID, 2, "a: 2", nil, metadata),
		spec.NewStateChanged(specID, 3, spec.StateDraft, spec.StatePublished, nil, metadata),
	}

	docs, err := serializer.SerializeMany(events)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	restored, err := serializer.DeserializeMany(docs)
	require.NoError(t, err)
	require.Len(t, restored, 3)

	for i, evt := range restored {
		assert.Equal(t, events[i].EventType(), evt.EventType())
		assert.Equal(t, events[i].Version(), evt.Version())
	}
}
