package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow/caseflow/internal/domain/action"
	"github.com/caseflow/caseflow/internal/domain/member"
	"github.com/caseflow/caseflow/internal/domain/payment"
	"github.com/caseflow/caseflow/internal/domain/ticket"
	"github.com/caseflow/caseflow/internal/infrastructure/memory"
)

const (
	supportRole = "role-support"
	midmanRole  = "role-midman"
)

type fakeChannels struct {
	mu        sync.Mutex
	nextID    int
	deleted   []string
	createErr error
	deleteErr error
}

func (f *fakeChannels) CreateRestrictedChannel(ctx context.Context, ownerIDs []string, viewerRoleIDs []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	return fmt.Sprintf("chan-%d", f.nextID), nil
}

func (f *fakeChannels) DeleteChannel(ctx context.Context, channelID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	f.deleted = append(f.deleted, channelID)
	return true, nil
}

func newTestService(t *testing.T) (*Service, *memory.TicketRepository, *fakeChannels) {
	t.Helper()
	repo := memory.NewTicketRepository()
	channels := &fakeChannels{}
	registry, err := payment.NewRegistry([]payment.Profile{
		{Name: "Koala", AccountNumber: "09170000001", DisplayName: "K. Martinez", QRImageRef: "https://cdn.example/qr/koala.png"},
		{Name: "Csy", AccountNumber: "09170000002", DisplayName: "C. Santos"},
	})
	require.NoError(t, err)
	svc := NewService(repo, channels, registry, nil, supportRole, midmanRole, zerolog.Nop())
	return svc, repo, channels
}

func shopCase(t *testing.T, svc *Service) *ticket.Case {
	t.Helper()
	c, err := svc.CreateShop(context.Background(), "owner-1", ShopForm{
		Category:         "Product",
		OrderDescription: "Nitro 1 month",
		Quantity:         "2",
	})
	require.NoError(t, err)
	return c
}

func midmanCase(t *testing.T, svc *Service, partner *member.Member) *ticket.Case {
	t.Helper()
	c, err := svc.CreateMidman(context.Background(), "owner-1", MidmanForm{
		TransactionDescription: "Account trade",
		Amount:                 "1500.00",
	}, partner)
	require.NoError(t, err)
	return c
}

func TestCreateShopValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateShop(ctx, "owner-1", ShopForm{Category: "P", OrderDescription: "x", Quantity: "abc"})
	assert.ErrorIs(t, err, ticket.ErrValidationFailed)

	_, err = svc.CreateShop(ctx, "owner-1", ShopForm{Category: "P", OrderDescription: "x", Quantity: "-5"})
	assert.ErrorIs(t, err, ticket.ErrValidationFailed)

	_, err = svc.CreateShop(ctx, "owner-1", ShopForm{Category: "", OrderDescription: "x", Quantity: "1"})
	assert.ErrorIs(t, err, ticket.ErrValidationFailed)
}

func TestCreateMidmanValidation(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateMidman(ctx, "owner-1", MidmanForm{TransactionDescription: "x", Amount: "-5"}, nil)
	assert.ErrorIs(t, err, ticket.ErrValidationFailed)

	_, err = svc.CreateMidman(ctx, "owner-1", MidmanForm{TransactionDescription: "x", Amount: "abc"}, nil)
	assert.ErrorIs(t, err, ticket.ErrValidationFailed)

	// no case may exist after failed validation
	cases, err := repo.ListByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestCreateMidmanPartnerMissing(t *testing.T) {
	svc, _, _ := newTestService(t)
	c := midmanCase(t, svc, nil)
	assert.True(t, c.PartnerMissing)
	assert.Empty(t, c.PartnerID)

	with := midmanCase(t, svc, &member.Member{ID: "77", Username: "alice"})
	assert.False(t, with.PartnerMissing)
	assert.Equal(t, "77", with.PartnerID)
}

func TestCreateShopRollsBackChannelOnStoreFailure(t *testing.T) {
	repo := memory.NewTicketRepository()
	channels := &fakeChannels{}
	registry, err := payment.NewRegistry(nil)
	require.NoError(t, err)
	svc := NewService(failingRepo{repo}, channels, registry, nil, supportRole, midmanRole, zerolog.Nop())

	_, err = svc.CreateShop(context.Background(), "owner-1", ShopForm{Category: "P", OrderDescription: "x", Quantity: "1"})
	require.Error(t, err)
	assert.Len(t, channels.deleted, 1)
}

type failingRepo struct{ *memory.TicketRepository }

func (failingRepo) Create(ctx context.Context, c *ticket.Case) error {
	return errors.New("store down")
}

func TestShopHappyPath(t *testing.T) {
	svc, repo, channels := newTestService(t)
	ctx := context.Background()
	actor := Actor{ID: "owner-1"}
	c := shopCase(t, svc)

	confirmed, err := svc.Apply(ctx, c.ID, action.TypeConfirmShop, actor)
	require.NoError(t, err)
	assert.Equal(t, ticket.StateAwaitingAgreement, confirmed.State)

	stored, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.StateAwaitingAgreement, stored.State)

	closed, err := svc.Apply(ctx, c.ID, action.TypeAgreeShop, actor)
	require.NoError(t, err)
	assert.Equal(t, ticket.StateClosed, closed.State)

	gone, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.Equal(t, []string{c.ChannelID}, channels.deleted)
}

func TestAgreeFromCreatedRejected(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	c := shopCase(t, svc)

	_, err := svc.Apply(ctx, c.ID, action.TypeAgreeShop, Actor{ID: "owner-1"})
	assert.ErrorIs(t, err, ticket.ErrInvalidTransition)

	stored, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.StateCreated, stored.State)
}

func TestRejectDeletesCase(t *testing.T) {
	svc, repo, channels := newTestService(t)
	ctx := context.Background()
	c := shopCase(t, svc)

	_, err := svc.Apply(ctx, c.ID, action.TypeRejectShop, Actor{ID: "owner-1"})
	require.NoError(t, err)

	gone, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.Contains(t, channels.deleted, c.ChannelID)
}

func TestConfirmRejectRaceExactlyOneWins(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	actor := Actor{ID: "owner-1"}

	for i := 0; i < 50; i++ {
		c := shopCase(t, svc)

		var wg sync.WaitGroup
		results := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, results[0] = svc.Apply(ctx, c.ID, action.TypeConfirmShop, actor)
		}()
		go func() {
			defer wg.Done()
			_, results[1] = svc.Apply(ctx, c.ID, action.TypeRejectShop, actor)
		}()
		wg.Wait()

		wins := 0
		for _, err := range results {
			if err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, ticket.ErrInvalidTransition)
			}
		}
		assert.Equal(t, 1, wins, "exactly one of confirm/reject must win")
	}
}

func TestRequestPaymentDetailsRequiresMidmanRole(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	c := midmanCase(t, svc, nil)

	_, err := svc.Apply(ctx, c.ID, action.TypeRequestPaymentDetails, Actor{ID: "owner-1", Roles: []string{supportRole}})
	assert.ErrorIs(t, err, ticket.ErrForbidden)

	stored, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.StateCreated, stored.State)

	staff := Actor{ID: "staff-1", Roles: []string{midmanRole}}
	moved, err := svc.Apply(ctx, c.ID, action.TypeRequestPaymentDetails, staff)
	require.NoError(t, err)
	assert.Equal(t, ticket.StatePaymentPending, moved.State)
}

func TestSubmitPaymentDetails(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	staff := Actor{ID: "staff-1", Roles: []string{midmanRole}}
	c := midmanCase(t, svc, nil)
	_, err := svc.Apply(ctx, c.ID, action.TypeRequestPaymentDetails, staff)
	require.NoError(t, err)

	_, _, err = svc.SubmitPaymentDetails(ctx, c.ID, Actor{ID: "owner-1"}, "Koala", "500")
	assert.ErrorIs(t, err, ticket.ErrForbidden)

	_, _, err = svc.SubmitPaymentDetails(ctx, c.ID, staff, "Dio", "500")
	assert.ErrorIs(t, err, ticket.ErrNotFound)

	_, _, err = svc.SubmitPaymentDetails(ctx, c.ID, staff, "Koala", "-1")
	assert.ErrorIs(t, err, ticket.ErrValidationFailed)

	updated, profile, err := svc.SubmitPaymentDetails(ctx, c.ID, staff, "Koala", "500")
	require.NoError(t, err)
	assert.Equal(t, ticket.StatePaymentSent, updated.State)
	assert.Equal(t, "Koala", updated.StaffName)
	assert.Equal(t, "09170000001", profile.AccountNumber)

	stored, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Koala", stored.StaffName)
	assert.True(t, stored.StaffAmount.IsPositive())

	// resubmission races against the state it already left
	_, _, err = svc.SubmitPaymentDetails(ctx, c.ID, staff, "Koala", "500")
	assert.ErrorIs(t, err, ticket.ErrInvalidTransition)
}

func TestConfirmPaymentReceivedClosesCase(t *testing.T) {
	svc, repo, channels := newTestService(t)
	ctx := context.Background()
	staff := Actor{ID: "staff-1", Roles: []string{midmanRole}}
	c := midmanCase(t, svc, nil)
	_, err := svc.Apply(ctx, c.ID, action.TypeRequestPaymentDetails, staff)
	require.NoError(t, err)
	_, _, err = svc.SubmitPaymentDetails(ctx, c.ID, staff, "Koala", "500")
	require.NoError(t, err)

	_, err = svc.Apply(ctx, c.ID, action.TypeConfirmPaymentReceived, Actor{ID: "owner-1"})
	assert.ErrorIs(t, err, ticket.ErrForbidden)

	closed, err := svc.Apply(ctx, c.ID, action.TypeConfirmPaymentReceived, staff)
	require.NoError(t, err)
	assert.Equal(t, ticket.StateClosed, closed.State)

	gone, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	assert.Contains(t, channels.deleted, c.ChannelID)
}

func TestCloseFailedChannelDeleteSurfaces(t *testing.T) {
	svc, repo, channels := newTestService(t)
	ctx := context.Background()
	c := shopCase(t, svc)
	channels.deleteErr = errors.New("gateway timeout")

	_, err := svc.Apply(ctx, c.ID, action.TypeRejectShop, Actor{ID: "owner-1"})
	assert.ErrorIs(t, err, ticket.ErrExternalCallFailed)

	// the record is gone; only the channel needs a manual retry
	gone, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestAttachPartner(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	c := midmanCase(t, svc, nil)
	staff := Actor{ID: "staff-1", Roles: []string{midmanRole}}

	_, err := svc.AttachPartner(ctx, c.ID, Actor{ID: "owner-1"}, member.Member{ID: "55"})
	assert.ErrorIs(t, err, ticket.ErrForbidden)

	updated, err := svc.AttachPartner(ctx, c.ID, staff, member.Member{ID: "55", Username: "bob"})
	require.NoError(t, err)
	assert.Equal(t, "55", updated.PartnerID)
	assert.False(t, updated.PartnerMissing)

	stored, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "55", stored.PartnerID)
}
