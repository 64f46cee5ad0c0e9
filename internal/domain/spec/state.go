package spec

import (
	"fmt"

	"github.com/lllypuk/specd/internal/domain/errs"
)

// State is the lifecycle state of a spec.
type State string

// Lifecycle states. Persisted as lowercase strings.
const (
	StateDraft      State = "draft"
	StatePublished  State = "published"
	StateDeprecated State = "deprecated"
	StateDeleted    State = "deleted"
)

// ParseState converts a string into a State.
func ParseState(s string) (State, error) {
	switch State(s) {
	case StateDraft, StatePublished, StateDeprecated, StateDeleted:
		return State(s), nil
	default:
		return "", fmt.Errorf("%w: unknown state %q", errs.ErrInvalidInput, s)
	}
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s State) IsTerminal() bool {
	return s == StateDeleted
}

// CanTransitionTo reports whether the transition s -> to is allowed.
//
// The full transition table:
//
//	draft      -> published, deleted
//	published  -> deprecated, deleted
//	deprecated -> deleted
//	deleted    -> (none)
//
// A draft cannot be deprecated: deprecation requires having been published.
func (s State) CanTransitionTo(to State) bool {
	if s.IsTerminal() {
		return false
	}
	if to == StateDeleted {
		return true
	}

	switch s {
	case StateDraft:
		return to == StatePublished
	case StatePublished:
		return to == StateDeprecated
	case StateDeprecated, StateDeleted:
		return false
	default:
		return false
	}
}

// String returns the string representation.
func (s State) String() string {
	return string(s)
}
