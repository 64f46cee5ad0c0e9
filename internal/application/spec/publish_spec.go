package spec

import (
	"context"
	"strings"

	specdomain "github.com/lllypuk/specd/internal/domain/spec"
)

// PublishSpecUseCase transitions a Draft spec to Published.
type PublishSpecUseCase struct {
	executor *BaseExecutor
}

// NewPublishSpecUseCase creates a new PublishSpecUseCase.
func NewPublishSpecUseCase(executor *BaseExecutor) *PublishSpecUseCase {
	return &PublishSpecUseCase{
		executor: executor,
	}
}

// Execute publishes the spec. ExpectedVersion is optional; without it the
// publish applies to whatever the current Draft version is.
func (uc *PublishSpecUseCase) Execute(ctx context.Context, cmd PublishSpecCommand) (SpecResult, error) {
	if cmd.SpecID.IsZero() {
		return SpecResult{}, ErrInvalidSpecID
	}
	if strings.TrimSpace(cmd.PublishedBy) == "" {
		return SpecResult{}, ErrInvalidUserID
	}

	metadata := commandMetadata(cmd.PublishedBy, cmd.Client)

	return uc.executor.Execute(ctx, cmd.SpecID, func(aggregate *specdomain.Aggregate) error {
		return aggregate.Publish(cmd.ExpectedVersion, metadata)
	}, "")
}
