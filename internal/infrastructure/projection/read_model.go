// Package projection holds the query-optimized read model derived from the
// fact log. The read model is a cache: it is rebuildable at any time and is
// never consulted for concurrency decisions.
package projection

import (
	"context"
	"errors"
	"time"

	"github.com/lllypuk/specd/internal/domain/event"
	"github.com/lllypuk/specd/internal/domain/spec"
	"github.com/lllypuk/specd/internal/domain/uuid"
)

// Projection errors.
var (
	// ErrNotFound is returned when no read model exists for an id
	ErrNotFound = errors.New("read model not found")

	// ErrSequenceGap is returned when a fact arrives ahead of the read
	// model's last applied sequence; the caller should catch the aggregate up
	// from the event store instead
	ErrSequenceGap = errors.New("projection sequence gap detected")
)

// SpecReadModel is the denormalized mirror of a spec aggregate's current
// state. last_applied_seq makes at-least-once fact delivery safe: facts at or
// below it are skipped on re-application.
type SpecReadModel struct {
	ID             string    `bson:"_id"          json:"id"`
	Name           string    `bson:"name"         json:"name"`
	Content        string    `bson:"content"      json:"content"`
	Description    *string   `bson:"description,omitempty" json:"description,omitempty"`
	Version        int       `bson:"version"      json:"version"`
	State          string    `bson:"state"        json:"state"`
	CreatedAt      time.Time `bson:"created_at"   json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"   json:"updated_at"`
	CreatedBy      string    `bson:"created_by"   json:"created_by"`
	UpdatedBy      string    `bson:"updated_by"   json:"updated_by"`
	LastAppliedSeq int       `bson:"last_applied_seq" json:"-"`
}

// ListFilter narrows and pages List results.
type ListFilter struct {
	// State filters by lifecycle state. When nil, deleted specs are excluded
	// and everything else is returned.
	State *spec.State

	Limit  int
	Offset int
}

// Store persists and queries spec read models.
type Store interface {
	// Apply folds one fact into the read model for its aggregate. Facts at or
	// below the last applied sequence are a no-op; facts more than one ahead
	// return ErrSequenceGap.
	Apply(ctx context.Context, evt event.DomainEvent) error

	// Get returns the read model for a spec id.
	Get(ctx context.Context, id uuid.UUID) (*SpecReadModel, error)

	// GetByName returns the read model with the given spec name.
	GetByName(ctx context.Context, name string) (*SpecReadModel, error)

	// List returns read models matching the filter, newest-updated first.
	List(ctx context.Context, filter ListFilter) ([]*SpecReadModel, error)

	// Count returns the number of read models matching the filter.
	Count(ctx context.Context, filter ListFilter) (int64, error)

	// LastAppliedSeq returns the last applied sequence for an aggregate,
	// 0 when no read model exists.
	LastAppliedSeq(ctx context.Context, id uuid.UUID) (int, error)

	// Reset discards all read models (full rebuild support).
	Reset(ctx context.Context) error
}
