package appcore

import (
	"errors"
)

// Application-level errors shared between handlers and infrastructure.
var (
	// ErrAggregateNotFound is returned when an aggregate has no events
	ErrAggregateNotFound = errors.New("aggregate not found")

	// ErrConcurrencyConflict is returned when an append loses the
	// expected-version race (optimistic locking)
	ErrConcurrencyConflict = errors.New("concurrency conflict detected")

	// ErrInvalidVersion is returned for nonsensical version arguments
	ErrInvalidVersion = errors.New("invalid version")

	// Infrastructure errors
	ErrEventStoreError = errors.New("event store error")
	ErrProjectionError = errors.New("projection error")
)
