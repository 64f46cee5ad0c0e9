package spec

import (
	"net/http"
)

// appError is a helper type that implements httpserver.HTTPError interface.
type appError struct {
	msg        string
	httpStatus int
	httpCode   string
	httpMsg    string
}

func (e *appError) Error() string       { return e.msg }
func (e *appError) HTTPStatus() int     { return e.httpStatus }
func (e *appError) HTTPCode() string    { return e.httpCode }
func (e *appError) HTTPMessage() string { return e.httpMsg }

var (
	// Validation errors

	// ErrInvalidSpecID is returned when the spec ID is not a valid UUID.
	ErrInvalidSpecID = &appError{
		msg:        "invalid spec ID",
		httpStatus: http.StatusBadRequest,
		httpCode:   "INVALID_SPEC_ID",
		httpMsg:    "invalid spec ID",
	}

	// ErrInvalidUserID is returned when the acting user ID is missing.
	ErrInvalidUserID = &appError{
		msg:        "invalid user ID",
		httpStatus: http.StatusBadRequest,
		httpCode:   "INVALID_USER_ID",
		httpMsg:    "invalid user ID",
	}

	// ErrInvalidPageToken is returned when a list page token cannot be decoded.
	ErrInvalidPageToken = &appError{
		msg:        "invalid page token",
		httpStatus: http.StatusBadRequest,
		httpCode:   "INVALID_PAGE_TOKEN",
		httpMsg:    "invalid page token",
	}

	// ErrInvalidVersionQuery is returned when a historical version query is not
	// a positive integer.
	ErrInvalidVersionQuery = &appError{
		msg:        "invalid version",
		httpStatus: http.StatusBadRequest,
		httpCode:   "INVALID_VERSION",
		httpMsg:    "version must be a positive integer",
	}

	// Business logic errors

	// ErrSpecNotFound is returned when no spec exists for the given ID.
	ErrSpecNotFound = &appError{
		msg:        "spec not found",
		httpStatus: http.StatusNotFound,
		httpCode:   "NOT_FOUND",
		httpMsg:    "spec not found",
	}

	// ErrVersionNotFound is returned when a spec has fewer versions than asked for.
	ErrVersionNotFound = &appError{
		msg:        "spec version not found",
		httpStatus: http.StatusNotFound,
		httpCode:   "VERSION_NOT_FOUND",
		httpMsg:    "spec version not found",
	}

	// ErrConcurrentUpdate is returned when the append retries are exhausted
	// by competing writers.
	ErrConcurrentUpdate = &appError{
		msg:        "concurrent update detected",
		httpStatus: http.StatusConflict,
		httpCode:   "CONCURRENT_MODIFICATION",
		httpMsg:    "spec was modified by another request",
	}
)
