package spec

import (
	"context"
	"strings"

	specdomain "github.com/lllypuk/specd/internal/domain/spec"
)

// UpdateSpecUseCase handles full content replacement on an existing spec.
type UpdateSpecUseCase struct {
	executor *BaseExecutor
}

// NewUpdateSpecUseCase creates a new UpdateSpecUseCase.
func NewUpdateSpecUseCase(executor *BaseExecutor) *UpdateSpecUseCase {
	return &UpdateSpecUseCase{
		executor: executor,
	}
}

// Execute replaces the spec's content. The caller's expected version must
// match the current one; a stale version surfaces errs.ErrVersionMismatch
// even when the append itself would have succeeded.
func (uc *UpdateSpecUseCase) Execute(ctx context.Context, cmd UpdateSpecCommand) (SpecResult, error) {
	if cmd.SpecID.IsZero() {
		return SpecResult{}, ErrInvalidSpecID
	}
	if strings.TrimSpace(cmd.UpdatedBy) == "" {
		return SpecResult{}, ErrInvalidUserID
	}

	metadata := commandMetadata(cmd.UpdatedBy, cmd.Client)

	return uc.executor.Execute(ctx, cmd.SpecID, func(aggregate *specdomain.Aggregate) error {
		return aggregate.UpdateContent(cmd.ExpectedVersion, cmd.Content, cmd.Description, metadata)
	}, "")
}
