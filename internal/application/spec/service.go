package spec

import (
	"context"

	"github.com/lllypuk/specd/internal/application/appcore"
	"github.com/lllypuk/specd/internal/domain/uuid"
	"github.com/lllypuk/specd/internal/infrastructure/projection"
)

// Every use case satisfies the shared use-case contract.
var (
	_ appcore.UseCase[CreateSpecCommand, SpecResult]    = (*CreateSpecUseCase)(nil)
	_ appcore.UseCase[UpdateSpecCommand, SpecResult]    = (*UpdateSpecUseCase)(nil)
	_ appcore.UseCase[PublishSpecCommand, SpecResult]   = (*PublishSpecUseCase)(nil)
	_ appcore.UseCase[DeprecateSpecCommand, SpecResult] = (*DeprecateSpecUseCase)(nil)
	_ appcore.UseCase[DeleteSpecCommand, SpecResult]    = (*DeleteSpecUseCase)(nil)
)

// Service bundles the spec use cases and the query side behind one facade
// for the HTTP layer.
type Service struct {
	createUC    *CreateSpecUseCase
	updateUC    *UpdateSpecUseCase
	publishUC   *PublishSpecUseCase
	deprecateUC *DeprecateSpecUseCase
	deleteUC    *DeleteSpecUseCase
	queries     *Queries
}

// NewService creates a new spec service.
func NewService(
	createUC *CreateSpecUseCase,
	updateUC *UpdateSpecUseCase,
	publishUC *PublishSpecUseCase,
	deprecateUC *DeprecateSpecUseCase,
	deleteUC *DeleteSpecUseCase,
	queries *Queries,
) *Service {
	return &Service{
		createUC:    createUC,
		updateUC:    updateUC,
		publishUC:   publishUC,
		deprecateUC: deprecateUC,
		deleteUC:    deleteUC,
		queries:     queries,
	}
}

// CreateSpec creates a new spec in Draft state.
func (s *Service) CreateSpec(ctx context.Context, cmd CreateSpecCommand) (SpecResult, error) {
	return s.createUC.Execute(ctx, cmd)
}

// UpdateSpec replaces a spec's content.
func (s *Service) UpdateSpec(ctx context.Context, cmd UpdateSpecCommand) (SpecResult, error) {
	return s.updateUC.Execute(ctx, cmd)
}

// PublishSpec transitions a Draft spec to Published.
func (s *Service) PublishSpec(ctx context.Context, cmd PublishSpecCommand) (SpecResult, error) {
	return s.publishUC.Execute(ctx, cmd)
}

// DeprecateSpec transitions a Published spec to Deprecated.
func (s *Service) DeprecateSpec(ctx context.Context, cmd DeprecateSpecCommand) (SpecResult, error) {
	return s.deprecateUC.Execute(ctx, cmd)
}

// DeleteSpec transitions a spec to the terminal Deleted state.
func (s *Service) DeleteSpec(ctx context.Context, cmd DeleteSpecCommand) (SpecResult, error) {
	return s.deleteUC.Execute(ctx, cmd)
}

// GetSpec returns the current state of a spec.
func (s *Service) GetSpec(ctx context.Context, specID uuid.UUID) (*projection.SpecReadModel, error) {
	return s.queries.GetSpec(ctx, specID)
}

// GetSpecVersion reconstructs a spec as of a historical version.
func (s *Service) GetSpecVersion(
	ctx context.Context,
	specID uuid.UUID,
	version int,
) (*projection.SpecReadModel, error) {
	return s.queries.GetSpecVersion(ctx, specID, version)
}

// GetHistory returns a spec's ordered fact sequence.
func (s *Service) GetHistory(ctx context.Context, specID uuid.UUID) ([]HistoryEntry, error) {
	return s.queries.GetHistory(ctx, specID)
}

// ListSpecs returns one page of specs.
func (s *Service) ListSpecs(ctx context.Context, query ListSpecsQuery) (*ListSpecsResult, error) {
	return s.queries.ListSpecs(ctx, query)
}
