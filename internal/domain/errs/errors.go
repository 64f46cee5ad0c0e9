// Package errs defines sentinel errors shared across the domain layer.
package errs

import "errors"

var (
	// ErrNotFound is returned when an aggregate has no recorded events
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists is returned when creating an aggregate that already has events
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput is returned when input data is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidation is returned when a command payload fails validation rules
	ErrValidation = errors.New("validation failed")

	// ErrVersionMismatch is returned when an expected version does not match
	// the current aggregate version (optimistic concurrency)
	ErrVersionMismatch = errors.New("version mismatch")

	// ErrConcurrentModification is returned when the event store rejects an
	// append because another writer committed first
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidTransition is returned when a lifecycle state transition is not allowed
	ErrInvalidTransition = errors.New("invalid state transition")
)
