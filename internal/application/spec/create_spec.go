package spec

import (
	"context"
	"fmt"
	"strings"

	specdomain "github.com/lllypuk/specd/internal/domain/spec"
	"github.com/lllypuk/specd/internal/domain/uuid"
)

// CreateSpecUseCase handles creation of new specs.
type CreateSpecUseCase struct {
	executor *BaseExecutor
}

// NewCreateSpecUseCase creates a new CreateSpecUseCase.
func NewCreateSpecUseCase(executor *BaseExecutor) *CreateSpecUseCase {
	return &CreateSpecUseCase{
		executor: executor,
	}
}

// Execute creates a new spec in Draft state. The first fact carries
// sequence number 1; name and content validation happens in the aggregate.
func (uc *CreateSpecUseCase) Execute(ctx context.Context, cmd CreateSpecCommand) (SpecResult, error) {
	if strings.TrimSpace(cmd.CreatedBy) == "" {
		return SpecResult{}, ErrInvalidUserID
	}

	specID := uuid.NewUUID()
	aggregate := specdomain.NewSpecAggregate(specID)

	metadata := commandMetadata(cmd.CreatedBy, cmd.Client)

	if err := aggregate.Create(cmd.Name, cmd.Content, cmd.Description, metadata); err != nil {
		return SpecResult{}, fmt.Errorf("failed to create spec: %w", err)
	}

	events := aggregate.UncommittedEvents()

	// A fresh UUID cannot collide with an existing aggregate, so a conflict
	// here is unrecoverable and is not retried.
	if err := uc.executor.Commit(ctx, specID, events, 0); err != nil {
		return SpecResult{}, err
	}

	aggregate.MarkEventsAsCommitted()

	return NewSuccessResult(specID, aggregate.Version(), events), nil
}
