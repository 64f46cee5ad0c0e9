// Package httphandler exposes the spec command and query surface over REST.
package httphandler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	specapp "github.com/lllypuk/specd/internal/application/spec"
	"github.com/lllypuk/specd/internal/domain/spec"
	"github.com/lllypuk/specd/internal/domain/uuid"
	"github.com/lllypuk/specd/internal/infrastructure/httpserver"
	"github.com/lllypuk/specd/internal/infrastructure/projection"
)

// userIDHeader carries the acting user for audit metadata. Authentication is
// out of scope; the value is recorded on every fact, never authorized.
const userIDHeader = "X-User-ID"

// CreateSpecRequest represents the request to create a spec.
type CreateSpecRequest struct {
	Name        string  `json:"name"`
	Content     string  `json:"content"`
	Description *string `json:"description,omitempty"`
}

// UpdateSpecRequest represents the request to replace a spec's content.
type UpdateSpecRequest struct {
	Content         string  `json:"content"`
	Description     *string `json:"description,omitempty"`
	ExpectedVersion int     `json:"expected_version"`
}

// PublishSpecRequest represents the request to publish a spec.
type PublishSpecRequest struct {
	ExpectedVersion *int `json:"expected_version,omitempty"`
}

// DeprecateSpecRequest represents the request to deprecate a spec.
type DeprecateSpecRequest struct {
	Reason string `json:"reason"`
}

// SpecResponse represents a spec in API responses.
type SpecResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Content     string  `json:"content"`
	Description *string `json:"description,omitempty"`
	Version     int     `json:"version"`
	State       string  `json:"state"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	CreatedBy   string  `json:"created_by"`
	UpdatedBy   string  `json:"updated_by"`
}

// CommandResponse reports the outcome of a state-changing operation.
type CommandResponse struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

// SpecListResponse represents one page of specs.
type SpecListResponse struct {
	Specs         []SpecResponse `json:"specs"`
	Total         int64          `json:"total"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

// HistoryResponse represents a spec's fact sequence.
type HistoryResponse struct {
	SpecID  string                 `json:"spec_id"`
	History []specapp.HistoryEntry `json:"history"`
}

// SpecService defines the interface for spec operations.
// Declared on the consumer side per project guidelines.
type SpecService interface {
	CreateSpec(ctx context.Context, cmd specapp.CreateSpecCommand) (specapp.SpecResult, error)
	UpdateSpec(ctx context.Context, cmd specapp.UpdateSpecCommand) (specapp.SpecResult, error)
	PublishSpec(ctx context.Context, cmd specapp.PublishSpecCommand) (specapp.SpecResult, error)
	DeprecateSpec(ctx context.Context, cmd specapp.DeprecateSpecCommand) (specapp.SpecResult, error)
	DeleteSpec(ctx context.Context, cmd specapp.DeleteSpecCommand) (specapp.SpecResult, error)
	GetSpec(ctx context.Context, specID uuid.UUID) (*projection.SpecReadModel, error)
	GetSpecVersion(ctx context.Context, specID uuid.UUID, version int) (*projection.SpecReadModel, error)
	GetHistory(ctx context.Context, specID uuid.UUID) ([]specapp.HistoryEntry, error)
	ListSpecs(ctx context.Context, query specapp.ListSpecsQuery) (*specapp.ListSpecsResult, error)
}

// SpecHandler handles spec-related HTTP requests.
type SpecHandler struct {
	specService SpecService
}

// NewSpecHandler creates a new SpecHandler.
func NewSpecHandler(specService SpecService) *SpecHandler {
	return &SpecHandler{
		specService: specService,
	}
}

// RegisterRoutes registers spec routes under the API group.
func (h *SpecHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/specs", h.Create)
	g.GET("/specs", h.List)
	g.GET("/specs/:id", h.Get)
	g.PUT("/specs/:id", h.Update)
	g.POST("/specs/:id/publish", h.Publish)
	g.POST("/specs/:id/deprecate", h.Deprecate)
	g.DELETE("/specs/:id", h.Delete)
	g.GET("/specs/:id/history", h.History)
}

// Create handles POST /api/v1/specs.
func (h *SpecHandler) Create(c echo.Context) error {
	userID, ok := h.userID(c)
	if !ok {
		return respondMissingUserID(c)
	}

	var req CreateSpecRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(
			c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}

	cmd := specapp.CreateSpecCommand{
		Name:        req.Name,
		Content:     req.Content,
		Description: req.Description,
		CreatedBy:   userID,
		Client:      clientInfo(c),
	}

	result, err := h.specService.CreateSpec(c.Request().Context(), cmd)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondCreated(c, CommandResponse{
		ID:      result.SpecID.String(),
		Version: result.Version,
	})
}

// Get handles GET /api/v1/specs/:id. With a `version` query parameter it
// reconstructs the spec as of that historical version from the fact log.
func (h *SpecHandler) Get(c echo.Context) error {
	specID, ok := h.specID(c)
	if !ok {
		return respondInvalidSpecID(c)
	}

	var (
		model *projection.SpecReadModel
		err   error
	)

	if versionStr := c.QueryParam("version"); versionStr != "" {
		version, parseErr := strconv.Atoi(versionStr)
		if parseErr != nil {
			return httpserver.RespondErrorWithCode(
				c, http.StatusBadRequest, "INVALID_VERSION", "version must be a positive integer")
		}
		model, err = h.specService.GetSpecVersion(c.Request().Context(), specID, version)
	} else {
		model, err = h.specService.GetSpec(c.Request().Context(), specID)
	}

	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, toSpecResponse(model))
}

// List handles GET /api/v1/specs with state filtering and pagination.
// Deleted specs are excluded unless `state=deleted` is asked for explicitly.
func (h *SpecHandler) List(c echo.Context) error {
	query := specapp.ListSpecsQuery{
		PageToken: c.QueryParam("page_token"),
	}

	if stateStr := c.QueryParam("state"); stateStr != "" {
		state, parseErr := spec.ParseState(stateStr)
		if parseErr != nil {
			return httpserver.RespondErrorWithCode(
				c, http.StatusBadRequest, "INVALID_STATE", "unknown lifecycle state")
		}
		query.State = &state
	}

	if sizeStr := c.QueryParam("page_size"); sizeStr != "" {
		size, parseErr := strconv.Atoi(sizeStr)
		if parseErr != nil || size < 1 {
			return httpserver.RespondErrorWithCode(
				c, http.StatusBadRequest, "INVALID_PAGE_SIZE", "page_size must be a positive integer")
		}
		query.PageSize = size
	}

	result, err := h.specService.ListSpecs(c.Request().Context(), query)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	specs := make([]SpecResponse, 0, len(result.Specs))
	for _, model := range result.Specs {
		specs = append(specs, toSpecResponse(model))
	}

	return httpserver.RespondOK(c, SpecListResponse{
		Specs:         specs,
		Total:         result.TotalCount,
		NextPageToken: result.NextPageToken,
	})
}

// Update handles PUT /api/v1/specs/:id. The expected version is mandatory.
func (h *SpecHandler) Update(c echo.Context) error {
	userID, ok := h.userID(c)
	if !ok {
		return respondMissingUserID(c)
	}

	specID, ok := h.specID(c)
	if !ok {
		return respondInvalidSpecID(c)
	}

	var req UpdateSpecRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(
			c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}

	if req.ExpectedVersion < 1 {
		return httpserver.RespondErrorWithCode(
			c, http.StatusBadRequest, "EXPECTED_VERSION_REQUIRED", "expected_version must be a positive integer")
	}

	cmd := specapp.UpdateSpecCommand{
		SpecID:          specID,
		ExpectedVersion: req.ExpectedVersion,
		Content:         req.Content,
		Description:     req.Description,
		UpdatedBy:       userID,
		Client:          clientInfo(c),
	}

	result, err := h.specService.UpdateSpec(c.Request().Context(), cmd)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, CommandResponse{
		ID:      result.SpecID.String(),
		Version: result.Version,
	})
}

// Publish handles POST /api/v1/specs/:id/publish.
func (h *SpecHandler) Publish(c echo.Context) error {
	userID, ok := h.userID(c)
	if !ok {
		return respondMissingUserID(c)
	}

	specID, ok := h.specID(c)
	if !ok {
		return respondInvalidSpecID(c)
	}

	// Body is optional: publish without it applies to the current version.
	var req PublishSpecRequest
	if c.Request().ContentLength > 0 {
		if bindErr := c.Bind(&req); bindErr != nil {
			return httpserver.RespondErrorWithCode(
				c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		}
	}

	cmd := specapp.PublishSpecCommand{
		SpecID:          specID,
		ExpectedVersion: req.ExpectedVersion,
		PublishedBy:     userID,
		Client:          clientInfo(c),
	}

	result, err := h.specService.PublishSpec(c.Request().Context(), cmd)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, CommandResponse{
		ID:      result.SpecID.String(),
		Version: result.Version,
	})
}

// Deprecate handles POST /api/v1/specs/:id/deprecate.
func (h *SpecHandler) Deprecate(c echo.Context) error {
	userID, ok := h.userID(c)
	if !ok {
		return respondMissingUserID(c)
	}

	specID, ok := h.specID(c)
	if !ok {
		return respondInvalidSpecID(c)
	}

	var req DeprecateSpecRequest
	if bindErr := c.Bind(&req); bindErr != nil {
		return httpserver.RespondErrorWithCode(
			c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
	}

	cmd := specapp.DeprecateSpecCommand{
		SpecID:       specID,
		Reason:       req.Reason,
		DeprecatedBy: userID,
		Client:       clientInfo(c),
	}

	result, err := h.specService.DeprecateSpec(c.Request().Context(), cmd)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, CommandResponse{
		ID:      result.SpecID.String(),
		Version: result.Version,
	})
}

// Delete handles DELETE /api/v1/specs/:id.
func (h *SpecHandler) Delete(c echo.Context) error {
	userID, ok := h.userID(c)
	if !ok {
		return respondMissingUserID(c)
	}

	specID, ok := h.specID(c)
	if !ok {
		return respondInvalidSpecID(c)
	}

	cmd := specapp.DeleteSpecCommand{
		SpecID:    specID,
		DeletedBy: userID,
		Client:    clientInfo(c),
	}

	result, err := h.specService.DeleteSpec(c.Request().Context(), cmd)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, CommandResponse{
		ID:      result.SpecID.String(),
		Version: result.Version,
	})
}

// History handles GET /api/v1/specs/:id/history. Works for deleted specs too.
func (h *SpecHandler) History(c echo.Context) error {
	specID, ok := h.specID(c)
	if !ok {
		return respondInvalidSpecID(c)
	}

	entries, err := h.specService.GetHistory(c.Request().Context(), specID)
	if err != nil {
		return httpserver.RespondError(c, err)
	}

	return httpserver.RespondOK(c, HistoryResponse{
		SpecID:  specID.String(),
		History: entries,
	})
}

func (h *SpecHandler) userID(c echo.Context) (string, bool) {
	userID := c.Request().Header.Get(userIDHeader)
	return userID, userID != ""
}

// clientInfo extracts the caller's network identity for audit metadata.
func clientInfo(c echo.Context) specapp.ClientInfo {
	return specapp.ClientInfo{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

func (h *SpecHandler) specID(c echo.Context) (uuid.UUID, bool) {
	specID, err := uuid.ParseUUID(c.Param("id"))
	if err != nil {
		return "", false
	}
	return specID, true
}

func respondMissingUserID(c echo.Context) error {
	return httpserver.RespondErrorWithCode(
		c, http.StatusBadRequest, "MISSING_USER_ID", "X-User-ID header is required")
}

func respondInvalidSpecID(c echo.Context) error {
	return httpserver.RespondErrorWithCode(
		c, http.StatusBadRequest, "INVALID_SPEC_ID", "invalid spec ID format")
}

func toSpecResponse(model *projection.SpecReadModel) SpecResponse {
	return SpecResponse{
		ID:          model.ID,
		Name:        model.Name,
		Content:     model.Content,
		Description: model.Description,
		Version:     model.Version,
		State:       model.State,
		CreatedAt:   model.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   model.UpdatedAt.Format(time.RFC3339),
		CreatedBy:   model.CreatedBy,
		UpdatedBy:   model.UpdatedBy,
	}
}
