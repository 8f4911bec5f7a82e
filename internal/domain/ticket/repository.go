package ticket

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository,ChannelManager

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FieldPatch carries optional field updates applied together with a
// state move. Nil fields are left untouched.
type FieldPatch struct {
	StaffName      *string
	StaffAmount    *decimal.Decimal
	PartnerID      *string
	PartnerMissing *bool
}

// Repository defines case persistence. UpdateState and DeleteInState are
// conditional on the expected prior state: of two racing writers reading
// the same "before" state, exactly one observes swapped=true.
type Repository interface {
	Create(ctx context.Context, c *Case) error
	GetByID(ctx context.Context, id uuid.UUID) (*Case, error)
	GetByChannel(ctx context.Context, channelID string) (*Case, error)
	UpdateState(ctx context.Context, id uuid.UUID, from, to State, patch *FieldPatch) (bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, patch FieldPatch) (bool, error)
	DeleteInState(ctx context.Context, id uuid.UUID, from State) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Case, error)
}

// ChannelManager manages the dedicated conversation channel of a case.
// The channel's lifetime is owned externally; cases hold only its id.
type ChannelManager interface {
	CreateRestrictedChannel(ctx context.Context, ownerIDs []string, viewerRoleIDs []string) (string, error)
	// DeleteChannel is idempotent: deleting an already-deleted channel
	// reports false without error.
	DeleteChannel(ctx context.Context, channelID string) (bool, error)
}
