package spec

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lllypuk/specd/internal/application/appcore"
	specdomain "github.com/lllypuk/specd/internal/domain/spec"
	"github.com/lllypuk/specd/internal/domain/uuid"
	"github.com/lllypuk/specd/internal/infrastructure/projection"
)

// Pagination bounds for ListSpecs.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// HistoryEntry is one fact in a spec's audit trail.
type HistoryEntry struct {
	SequenceNumber int       `json:"sequence_number"`
	EventType      string    `json:"event_type"`
	OccurredAt     time.Time `json:"occurred_at"`
	UserID         string    `json:"user_id"`
	Summary        string    `json:"summary"`
}

// ListSpecsQuery narrows and pages ListSpecs.
type ListSpecsQuery struct {
	// State filters by lifecycle state; nil excludes deleted specs only.
	State     *specdomain.State
	PageSize  int
	PageToken string
}

// QueryName identifies the query in logs.
func (q ListSpecsQuery) QueryName() string { return "ListSpecs" }

var _ appcore.Query = ListSpecsQuery{}

// ListSpecsResult is one page of specs plus the token for the next page.
type ListSpecsResult struct {
	Specs         []*projection.SpecReadModel `json:"specs"`
	TotalCount    int64                       `json:"total_count"`
	NextPageToken string                      `json:"next_page_token,omitempty"`
}

// Queries serves the read side. Current-state reads come from the projection
// store; historical reads fold the fact log directly, bypassing the
// projection entirely.
type Queries struct {
	eventStore  appcore.EventStore
	projections projection.Store
}

// NewQueries creates a new query service.
func NewQueries(eventStore appcore.EventStore, projections projection.Store) *Queries {
	return &Queries{
		eventStore:  eventStore,
		projections: projections,
	}
}

// GetSpec returns the current state of a spec from the read model. Deleted
// specs are still returned by ID; only listings exclude them.
func (q *Queries) GetSpec(ctx context.Context, specID uuid.UUID) (*projection.SpecReadModel, error) {
	model, err := q.projections.Get(ctx, specID)
	if err != nil {
		if errors.Is(err, projection.ErrNotFound) {
			return nil, ErrSpecNotFound
		}
		return nil, fmt.Errorf("%w: failed to get spec: %w", appcore.ErrProjectionError, err)
	}
	return model, nil
}

// GetSpecVersion reconstructs the spec as of a historical version by folding
// facts with sequence number <= version from the event log.
func (q *Queries) GetSpecVersion(
	ctx context.Context,
	specID uuid.UUID,
	version int,
) (*projection.SpecReadModel, error) {
	if version < 1 {
		return nil, ErrInvalidVersionQuery
	}

	events, err := q.eventStore.LoadEventsUpTo(ctx, specID.String(), version)
	if err != nil {
		if errors.Is(err, appcore.ErrAggregateNotFound) {
			return nil, ErrSpecNotFound
		}
		return nil, fmt.Errorf("failed to load spec history: %w", err)
	}

	// Sequence numbers are gapless, so fewer facts than the requested version
	// means that version never existed.
	if len(events) < version {
		return nil, ErrVersionNotFound
	}

	aggregate := specdomain.NewSpecAggregate(specID)
	aggregate.ReplayEvents(events)

	return &projection.SpecReadModel{
		ID:          specID.String(),
		Name:        aggregate.Name(),
		Content:     aggregate.Content(),
		Description: aggregate.Description(),
		Version:     aggregate.Version(),
		State:       aggregate.State().String(),
		CreatedAt:   aggregate.CreatedAt(),
		UpdatedAt:   aggregate.UpdatedAt(),
		CreatedBy:   aggregate.CreatedBy(),
		UpdatedBy:   aggregate.UpdatedBy(),
	}, nil
}

// GetHistory returns the full ordered fact sequence of a spec, including
// specs in the Deleted state.
func (q *Queries) GetHistory(ctx context.Context, specID uuid.UUID) ([]HistoryEntry, error) {
	events, err := q.eventStore.LoadEvents(ctx, specID.String())
	if err != nil {
		if errors.Is(err, appcore.ErrAggregateNotFound) {
			return nil, ErrSpecNotFound
		}
		return nil, fmt.Errorf("failed to load spec history: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(events))
	for _, evt := range events {
		entry := HistoryEntry{
			SequenceNumber: evt.Version(),
			EventType:      evt.EventType(),
			OccurredAt:     evt.OccurredAt(),
			UserID:         evt.Metadata().UserID,
		}

		switch e := evt.(type) {
		case *specdomain.Created:
			entry.Summary = fmt.Sprintf("created %q as draft", e.Name)
		case *specdomain.ContentUpdated:
			entry.Summary = "content replaced"
		case *specdomain.StateChanged:
			entry.Summary = fmt.Sprintf("%s -> %s", e.FromState, e.ToState)
			if e.Reason != nil {
				entry.Summary += fmt.Sprintf(" (%s)", *e.Reason)
			}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// ListSpecs returns one page of specs, newest-updated first. Page tokens are
// opaque offsets; an empty token starts from the beginning.
func (q *Queries) ListSpecs(ctx context.Context, query ListSpecsQuery) (*ListSpecsResult, error) {
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	offset, err := decodePageToken(query.PageToken)
	if err != nil {
		return nil, err
	}

	filter := projection.ListFilter{
		State:  query.State,
		Limit:  pageSize,
		Offset: offset,
	}

	specs, err := q.projections.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list specs: %w", appcore.ErrProjectionError, err)
	}

	total, err := q.projections.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to count specs: %w", appcore.ErrProjectionError, err)
	}

	result := &ListSpecsResult{
		Specs:      specs,
		TotalCount: total,
	}

	if int64(offset+len(specs)) < total {
		result.NextPageToken = encodePageToken(offset + len(specs))
	}

	return result, nil
}

func encodePageToken(offset int) string {
	return base64.URLEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}

func decodePageToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}

	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return 0, ErrInvalidPageToken
	}

	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}

	return offset, nil
}
