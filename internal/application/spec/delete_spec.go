package spec

import (
	"context"
	"strings"

	specdomain "github.com/lllypuk/specd/internal/domain/spec"
)

// DeleteSpecUseCase transitions a spec to the terminal Deleted state. Deletion
// appends a fact like any other command; history stays queryable afterwards.
type DeleteSpecUseCase struct {
	executor *BaseExecutor
}

// NewDeleteSpecUseCase creates a new DeleteSpecUseCase.
func NewDeleteSpecUseCase(executor *BaseExecutor) *DeleteSpecUseCase {
	return &DeleteSpecUseCase{
		executor: executor,
	}
}

// Execute deletes the spec. Deleting an already-deleted spec is an invalid
// transition, not a no-op.
func (uc *DeleteSpecUseCase) Execute(ctx context.Context, cmd DeleteSpecCommand) (SpecResult, error) {
	if cmd.SpecID.IsZero() {
		return SpecResult{}, ErrInvalidSpecID
	}
	if strings.TrimSpace(cmd.DeletedBy) == "" {
		return SpecResult{}, ErrInvalidUserID
	}

	metadata := commandMetadata(cmd.DeletedBy, cmd.Client)

	return uc.executor.Execute(ctx, cmd.SpecID, func(aggregate *specdomain.Aggregate) error {
		return aggregate.Delete(metadata)
	}, "")
}
