package appcore

import "context"

// UseCase is the base interface for all use cases.
// TCommand is the input type, TResult the output type.
type UseCase[TCommand any, TResult any] interface {
	// Execute runs the use case with the given command
	Execute(ctx context.Context, cmd TCommand) (TResult, error)
}

// Command is a marker interface for state-changing operations.
type Command interface {
	CommandName() string
}

// Query is a marker interface for read-only operations.
type Query interface {
	QueryName() string
}
