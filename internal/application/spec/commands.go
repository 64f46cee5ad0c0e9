package spec

import (
	"github.com/lllypuk/specd/internal/application/appcore"
	"github.com/lllypuk/specd/internal/domain/event"
	"github.com/lllypuk/specd/internal/domain/uuid"
)

// ClientInfo carries request-level audit context (set by the transport layer)
// that is recorded in the metadata of every fact the command produces.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// commandMetadata builds the audit metadata stamped on every emitted fact.
func commandMetadata(userID string, client ClientInfo) event.Metadata {
	return event.NewMetadata(userID, uuid.NewUUID().String(), "").
		WithIPAddress(client.IPAddress).
		WithUserAgent(client.UserAgent)
}

// CreateSpecCommand creates a new spec in Draft state.
type CreateSpecCommand struct {
	Name        string
	Content     string
	Description *string
	CreatedBy   string
	Client      ClientInfo
}

// CommandName identifies the command in logs.
func (c CreateSpecCommand) CommandName() string { return "CreateSpec" }

// UpdateSpecCommand replaces a spec's content in full. ExpectedVersion is
// mandatory: the update is rejected when it does not match the current
// version.
type UpdateSpecCommand struct {
	SpecID          uuid.UUID
	ExpectedVersion int
	Content         string
	Description     *string
	UpdatedBy       string
	Client          ClientInfo
}

// CommandName identifies the command in logs.
func (c UpdateSpecCommand) CommandName() string { return "UpdateSpec" }

// PublishSpecCommand transitions a Draft spec to Published. ExpectedVersion
// is optional; when given it must match the current version.
type PublishSpecCommand struct {
	SpecID          uuid.UUID
	ExpectedVersion *int
	PublishedBy     string
	Client          ClientInfo
}

// CommandName identifies the command in logs.
func (c PublishSpecCommand) CommandName() string { return "PublishSpec" }

// DeprecateSpecCommand transitions a Published spec to Deprecated.
type DeprecateSpecCommand struct {
	SpecID       uuid.UUID
	Reason       string
	DeprecatedBy string
	Client       ClientInfo
}

// CommandName identifies the command in logs.
func (c DeprecateSpecCommand) CommandName() string { return "DeprecateSpec" }

// DeleteSpecCommand transitions any non-deleted spec to the terminal Deleted
// state. The fact history remains queryable.
type DeleteSpecCommand struct {
	SpecID    uuid.UUID
	DeletedBy string
	Client    ClientInfo
}

// CommandName identifies the command in logs.
func (c DeleteSpecCommand) CommandName() string { return "DeleteSpec" }

var (
	_ appcore.Command = CreateSpecCommand{}
	_ appcore.Command = UpdateSpecCommand{}
	_ appcore.Command = PublishSpecCommand{}
	_ appcore.Command = DeprecateSpecCommand{}
	_ appcore.Command = DeleteSpecCommand{}
)
