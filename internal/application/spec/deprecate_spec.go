package spec

import (
	"context"
	"strings"

	specdomain "github.com/lllypuk/specd/internal/domain/spec"
)

// DeprecateSpecUseCase transitions a Published spec to Deprecated.
type DeprecateSpecUseCase struct {
	executor *BaseExecutor
}

// NewDeprecateSpecUseCase creates a new DeprecateSpecUseCase.
func NewDeprecateSpecUseCase(executor *BaseExecutor) *DeprecateSpecUseCase {
	return &DeprecateSpecUseCase{
		executor: executor,
	}
}

// Execute deprecates the spec with a mandatory reason.
func (uc *DeprecateSpecUseCase) Execute(ctx context.Context, cmd DeprecateSpecCommand) (SpecResult, error) {
	if cmd.SpecID.IsZero() {
		return SpecResult{}, ErrInvalidSpecID
	}
	if strings.TrimSpace(cmd.DeprecatedBy) == "" {
		return SpecResult{}, ErrInvalidUserID
	}

	metadata := commandMetadata(cmd.DeprecatedBy, cmd.Client)

	return uc.executor.Execute(ctx, cmd.SpecID, func(aggregate *specdomain.Aggregate) error {
		return aggregate.Deprecate(cmd.Reason, metadata)
	}, "")
}
