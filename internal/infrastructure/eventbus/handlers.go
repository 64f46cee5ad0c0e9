package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lllypuk/specd/internal/application/appcore"
	"github.com/lllypuk/specd/internal/domain/event"
	"github.com/lllypuk/specd/internal/domain/spec"
	"github.com/lllypuk/specd/internal/domain/uuid"
)

const maxPayloadLogLength = 500

// PayloadEvent is an interface for events that carry a raw JSON payload.
// Implemented by RemoteEvent for events received from Redis.
type PayloadEvent interface {
	event.DomainEvent
	Payload() json.RawMessage
}

// ProjectionHandler keeps read models in sync when spec facts arrive over the
// bus. Bus delivery carries no ordering guarantee, so instead of applying the
// remote payload directly the handler catches the aggregate up from the fact
// log, which is always authoritative.
type ProjectionHandler struct {
	projector appcore.ReadModelProjector
	logger    *slog.Logger
}

// ProjectionHandlerOption configures ProjectionHandler.
type ProjectionHandlerOption func(*ProjectionHandler)

// WithProjectionLogger sets the logger for ProjectionHandler.
func WithProjectionLogger(logger *slog.Logger) ProjectionHandlerOption {
	return func(h *ProjectionHandler) {
		h.logger = logger
	}
}

// NewProjectionHandler creates a new ProjectionHandler.
func NewProjectionHandler(
	projector appcore.ReadModelProjector,
	opts ...ProjectionHandlerOption,
) *ProjectionHandler {
	h := &ProjectionHandler{
		projector: projector,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Handle catches the event's aggregate up in the read model.
func (h *ProjectionHandler) Handle(ctx context.Context, evt event.DomainEvent) error {
	id, err := uuid.ParseUUID(evt.AggregateID())
	if err != nil {
		h.logger.WarnContext(ctx, "invalid aggregate ID in bus event",
			slog.String("aggregate_id", evt.AggregateID()),
			slog.String("error", err.Error()),
		)
		return nil // malformed message, retrying won't help
	}

	if catchUpErr := h.projector.CatchUpAggregate(ctx, id); catchUpErr != nil {
		return fmt.Errorf("failed to catch up aggregate %s: %w", id, catchUpErr)
	}

	return nil
}

// AsEventHandler converts ProjectionHandler to the EventHandler function type.
func (h *ProjectionHandler) AsEventHandler() EventHandler {
	return h.Handle
}

// LoggingHandler logs all domain events for audit trail purposes.
type LoggingHandler struct {
	logger *slog.Logger
}

// NewLoggingHandler creates a new LoggingHandler.
func NewLoggingHandler(logger *slog.Logger) *LoggingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingHandler{
		logger: logger,
	}
}

// Handle logs the domain event.
func (h *LoggingHandler) Handle(ctx context.Context, evt event.DomainEvent) error {
	attrs := []any{
		slog.String("event_type", evt.EventType()),
		slog.String("aggregate_id", evt.AggregateID()),
		slog.String("aggregate_type", evt.AggregateType()),
		slog.Time("occurred_at", evt.OccurredAt()),
		slog.Int("version", evt.Version()),
	}

	metadata := evt.Metadata()
	if metadata.UserID != "" {
		attrs = append(attrs, slog.String("user_id", metadata.UserID))
	}
	if metadata.CorrelationID != "" {
		attrs = append(attrs, slog.String("correlation_id", metadata.CorrelationID))
	}

	if pe, ok := evt.(PayloadEvent); ok {
		payload := string(pe.Payload())
		if len(payload) > maxPayloadLogLength {
			payload = payload[:maxPayloadLogLength] + "..."
		}
		attrs = append(attrs, slog.String("payload", payload))
	}

	h.logger.InfoContext(ctx, "domain event", attrs...)

	return nil
}

// AsEventHandler converts LoggingHandler to the EventHandler function type.
func (h *LoggingHandler) AsEventHandler() EventHandler {
	return h.Handle
}

// SpecEventTypes lists every fact type a spec aggregate emits.
func SpecEventTypes() []string {
	return []string{
		spec.EventTypeSpecCreated,
		spec.EventTypeSpecUpdated,
		spec.EventTypeStateChanged,
	}
}

// RegisterSpecHandlers subscribes the projection and logging handlers to all
// spec fact types. Redis Pub/Sub has no wildcard channels, so each type is
// subscribed explicitly.
func RegisterSpecHandlers(
	bus *RedisEventBus,
	projHandler *ProjectionHandler,
	logHandler *LoggingHandler,
) error {
	for _, eventType := range SpecEventTypes() {
		if projHandler != nil {
			if err := bus.Subscribe(eventType, projHandler.AsEventHandler()); err != nil {
				return fmt.Errorf("failed to subscribe projection handler to %s: %w", eventType, err)
			}
		}
		if logHandler != nil {
			if err := bus.Subscribe(eventType, logHandler.AsEventHandler()); err != nil {
				return fmt.Errorf("failed to subscribe logging handler to %s: %w", eventType, err)
			}
		}
	}
	return nil
}
