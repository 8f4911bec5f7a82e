package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/caseflow/caseflow/internal/domain/action"
	"github.com/caseflow/caseflow/internal/domain/member"
	"github.com/caseflow/caseflow/internal/domain/payment"
	"github.com/caseflow/caseflow/internal/domain/ticket"
	"github.com/caseflow/caseflow/internal/domain/ticket/mocks"
)

func newMockedService(t *testing.T) (*Service, *mocks.MockRepository, *mocks.MockChannelManager) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	channels := mocks.NewMockChannelManager(ctrl)
	registry, err := payment.NewRegistry(nil)
	require.NoError(t, err)
	svc := NewService(repo, channels, registry, nil, supportRole, midmanRole, zerolog.Nop())
	return svc, repo, channels
}

func storedShopCase() *ticket.Case {
	return &ticket.Case{
		ID:               uuid.New(),
		Kind:             ticket.KindShop,
		State:            ticket.StateCreated,
		OwnerID:          "owner-1",
		ChannelID:        "chan-1",
		Category:         "Product",
		OrderDescription: "Nitro",
		Quantity:         1,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestApplyStoreLoadFailure(t *testing.T) {
	svc, repo, _ := newMockedService(t)
	ctx := context.Background()
	id := uuid.New()

	storeErr := errors.New("connection reset")
	repo.EXPECT().GetByID(ctx, id).Return(nil, storeErr)

	_, err := svc.Apply(ctx, id, action.TypeConfirmShop, Actor{ID: "owner-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
}

func TestApplyStoreWriteFailure(t *testing.T) {
	svc, repo, _ := newMockedService(t)
	ctx := context.Background()
	c := storedShopCase()

	storeErr := errors.New("connection reset")
	repo.EXPECT().GetByID(ctx, c.ID).Return(c, nil)
	repo.EXPECT().
		UpdateState(ctx, c.ID, ticket.StateCreated, ticket.StateAwaitingAgreement, gomock.Nil()).
		Return(false, storeErr)

	_, err := svc.Apply(ctx, c.ID, action.TypeConfirmShop, Actor{ID: "owner-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, ticket.ErrInvalidTransition)
}

func TestCloseStoreDeleteFailureKeepsChannel(t *testing.T) {
	svc, repo, _ := newMockedService(t)
	ctx := context.Background()
	c := storedShopCase()

	storeErr := errors.New("connection reset")
	repo.EXPECT().GetByID(ctx, c.ID).Return(c, nil)
	// no DeleteChannel expectation: a failed record delete must leave the
	// channel alone
	repo.EXPECT().DeleteInState(ctx, c.ID, ticket.StateCreated).Return(false, storeErr)

	_, err := svc.Apply(ctx, c.ID, action.TypeRejectShop, Actor{ID: "owner-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
}

func TestCreateShopRollbackOrder(t *testing.T) {
	svc, repo, channels := newMockedService(t)
	ctx := context.Background()

	storeErr := errors.New("connection reset")
	gomock.InOrder(
		channels.EXPECT().
			CreateRestrictedChannel(ctx, []string{"owner-1"}, []string{supportRole}).
			Return("chan-9", nil),
		repo.EXPECT().Create(ctx, gomock.Any()).Return(storeErr),
		channels.EXPECT().DeleteChannel(ctx, "chan-9").Return(true, nil),
	)

	_, err := svc.CreateShop(ctx, "owner-1", ShopForm{Category: "Product", OrderDescription: "Nitro", Quantity: "1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
}

func TestAttachPartnerVanishedCase(t *testing.T) {
	svc, repo, _ := newMockedService(t)
	ctx := context.Background()
	c := storedShopCase()
	c.Kind = ticket.KindMidman
	c.Amount = decimal.NewFromInt(1500)

	repo.EXPECT().GetByID(ctx, c.ID).Return(c, nil)
	repo.EXPECT().UpdateFields(ctx, c.ID, gomock.Any()).Return(false, nil)

	_, err := svc.AttachPartner(ctx, c.ID, Actor{ID: "staff-1", Roles: []string{midmanRole}}, member.Member{ID: "55"})
	assert.ErrorIs(t, err, ticket.ErrCaseNotFound)
}
