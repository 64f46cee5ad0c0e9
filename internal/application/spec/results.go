package spec

import (
	"github.com/lllypuk/specd/internal/domain/event"
	"github.com/lllypuk/specd/internal/domain/uuid"
)

// SpecResult is the outcome of a spec command use case.
type SpecResult struct {
	// SpecID identifies the spec the command operated on
	SpecID uuid.UUID

	// Version is the aggregate version after the operation
	Version int

	// Events are the facts the operation produced
	Events []event.DomainEvent

	// Success reports whether the operation took effect
	Success bool

	// Message carries additional detail (idempotent no-ops, warnings)
	Message string
}

// NewSuccessResult creates a successful command result.
func NewSuccessResult(specID uuid.UUID, version int, events []event.DomainEvent) SpecResult {
	return SpecResult{
		SpecID:  specID,
		Version: version,
		Events:  events,
		Success: true,
	}
}

// EventCount returns the number of facts the command produced.
func (r SpecResult) EventCount() int {
	return len(r.Events)
}
