package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/caseflow/caseflow/internal/domain/action"
	"github.com/caseflow/caseflow/internal/domain/member"
	"github.com/caseflow/caseflow/internal/domain/payment"
	"github.com/caseflow/caseflow/internal/domain/ticket"
)

// Actor is the member performing an operation together with the
// permission groups the event reported for them.
type Actor struct {
	ID    string
	Roles []string
}

// HasRole reports membership in a permission group.
func (a Actor) HasRole(roleID string) bool {
	for _, r := range a.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

// Service owns the case state machines. It is the only writer of case
// state: every transition is one conditional write against the store, so
// two racing clicks on the same control cannot both succeed.
type Service struct {
	repo          ticket.Repository
	channels      ticket.ChannelManager
	registry      *payment.Registry
	guards        *GuardSet
	supportRoleID string
	midmanRoleID  string
	logger        zerolog.Logger
}

// NewService creates the lifecycle engine.
func NewService(repo ticket.Repository, channels ticket.ChannelManager, registry *payment.Registry, guards *GuardSet, supportRoleID, midmanRoleID string, logger zerolog.Logger) *Service {
	return &Service{
		repo:          repo,
		channels:      channels,
		registry:      registry,
		guards:        guards,
		supportRoleID: supportRoleID,
		midmanRoleID:  midmanRoleID,
		logger:        logger.With().Str("service", "lifecycle").Logger(),
	}
}

// ShopForm carries the raw text fields of the shop creation form.
type ShopForm struct {
	Category         string
	OrderDescription string
	Quantity         string
	Notes            string
}

// MidmanForm carries the raw text fields of the midman creation form.
type MidmanForm struct {
	TransactionDescription string
	Amount                 string
	PartnerReference       string
}

// CreateShop validates the form, provisions the restricted channel, and
// persists the case in CREATED. The channel comes first because the
// record needs its id; a failed record write rolls the channel back.
func (s *Service) CreateShop(ctx context.Context, ownerID string, form ShopForm) (*ticket.Case, error) {
	if err := validateLen("category", form.Category, 50, true); err != nil {
		return nil, err
	}
	if err := validateLen("order description", form.OrderDescription, 100, true); err != nil {
		return nil, err
	}
	if err := validateLen("notes", form.Notes, 500, false); err != nil {
		return nil, err
	}
	quantity, err := strconv.Atoi(form.Quantity)
	if err != nil {
		return nil, fmt.Errorf("%w: quantity must be a valid number", ticket.ErrValidationFailed)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ticket.ErrValidationFailed)
	}
	if err := s.guards.Check(action.TypeCreateShop, map[string]string{
		"category": form.Category,
		"quantity": form.Quantity,
	}); err != nil {
		return nil, err
	}

	channelID, err := s.channels.CreateRestrictedChannel(ctx, []string{ownerID}, []string{s.supportRoleID})
	if err != nil {
		return nil, fmt.Errorf("%w: channel creation: %v", ticket.ErrExternalCallFailed, err)
	}

	c := &ticket.Case{
		ID:               uuid.New(),
		Kind:             ticket.KindShop,
		OwnerID:          ownerID,
		ChannelID:        channelID,
		State:            ticket.StateCreated,
		Category:         form.Category,
		OrderDescription: form.OrderDescription,
		Quantity:         quantity,
		Notes:            form.Notes,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.persistNew(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info().Str("case_id", c.ID.String()).Str("owner_id", ownerID).Msg("shop case created")
	return c, nil
}

// CreateMidman validates the form and persists the case. partner may be
// nil: resolution failure flags the case for manual attach instead of
// blocking creation.
func (s *Service) CreateMidman(ctx context.Context, ownerID string, form MidmanForm, partner *member.Member) (*ticket.Case, error) {
	if err := validateLen("transaction description", form.TransactionDescription, 500, true); err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(form.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount must be a valid number", ticket.ErrValidationFailed)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ticket.ErrValidationFailed)
	}
	if err := s.guards.Check(action.TypeCreateMidman, map[string]string{
		"amount": form.Amount,
	}); err != nil {
		return nil, err
	}

	ownerIDs := []string{ownerID}
	if partner != nil {
		ownerIDs = append(ownerIDs, partner.ID)
	}
	channelID, err := s.channels.CreateRestrictedChannel(ctx, ownerIDs, []string{s.midmanRoleID})
	if err != nil {
		return nil, fmt.Errorf("%w: channel creation: %v", ticket.ErrExternalCallFailed, err)
	}

	c := &ticket.Case{
		ID:                     uuid.New(),
		Kind:                   ticket.KindMidman,
		OwnerID:                ownerID,
		ChannelID:              channelID,
		State:                  ticket.StateCreated,
		TransactionDescription: form.TransactionDescription,
		Amount:                 amount,
		PartnerMissing:         partner == nil,
		CreatedAt:              time.Now().UTC(),
	}
	if partner != nil {
		c.PartnerID = partner.ID
	}
	if err := s.persistNew(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("case_id", c.ID.String()).
		Str("owner_id", ownerID).
		Bool("partner_missing", c.PartnerMissing).
		Msg("midman case created")
	return c, nil
}

func (s *Service) persistNew(ctx context.Context, c *ticket.Case) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		// The channel exists but the record does not; roll the channel
		// back so no orphan channel outlives a failed creation.
		if _, derr := s.channels.DeleteChannel(ctx, c.ChannelID); derr != nil {
			s.logger.Error().Err(derr).Str("channel_id", c.ChannelID).Msg("rollback channel delete failed")
		}
		return fmt.Errorf("failed to create case: %w", err)
	}
	return nil
}

// Apply validates and executes a lifecycle transition. A lost race
// surfaces as ErrInvalidTransition: the loser's conditional write finds
// the "before" state already gone.
func (s *Service) Apply(ctx context.Context, caseID uuid.UUID, op action.Type, actor Actor) (*ticket.Case, error) {
	c, err := s.repo.GetByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load case: %w", err)
	}
	if c == nil {
		return nil, ticket.ErrCaseNotFound
	}

	switch op {
	case action.TypeConfirmShop:
		return s.swap(ctx, c, ticket.KindShop, ticket.StateCreated, ticket.StateAwaitingAgreement, nil)
	case action.TypeAgreeShop:
		if c.Kind != ticket.KindShop || !c.CanTransitionTo(ticket.StateClosed) {
			return nil, ticket.ErrInvalidTransition
		}
		return s.closeCase(ctx, c, ticket.StateAwaitingAgreement)
	case action.TypeRejectShop:
		if c.Kind != ticket.KindShop {
			return nil, ticket.ErrInvalidTransition
		}
		return s.closeCase(ctx, c, ticket.StateCreated)
	case action.TypeRequestPaymentDetails:
		if !actor.HasRole(s.midmanRoleID) {
			return nil, ticket.ErrForbidden
		}
		return s.swap(ctx, c, ticket.KindMidman, ticket.StateCreated, ticket.StatePaymentPending, nil)
	case action.TypeConfirmPaymentReceived:
		if !actor.HasRole(s.midmanRoleID) {
			return nil, ticket.ErrForbidden
		}
		if c.Kind != ticket.KindMidman {
			return nil, ticket.ErrInvalidTransition
		}
		return s.closeCase(ctx, c, ticket.StatePaymentSent)
	case action.TypeCloseCase:
		return s.closeAny(ctx, c)
	default:
		return nil, ticket.ErrInvalidTransition
	}
}

// SubmitPaymentDetails attaches a staff payment profile to a midman case
// and moves it to PAYMENT_DETAILS_SENT. The profile fields and the state
// move land in one conditional write so a cancelled event cannot leave a
// half-updated record.
func (s *Service) SubmitPaymentDetails(ctx context.Context, caseID uuid.UUID, actor Actor, staffName, amountText string) (*ticket.Case, *payment.Profile, error) {
	if !actor.HasRole(s.midmanRoleID) {
		return nil, nil, ticket.ErrForbidden
	}
	profile := s.registry.Lookup(staffName)
	if profile == nil {
		return nil, nil, fmt.Errorf("%w: staff payment profile %q", ticket.ErrNotFound, staffName)
	}
	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: amount must be a valid number", ticket.ErrValidationFailed)
	}
	if !amount.IsPositive() {
		return nil, nil, fmt.Errorf("%w: amount must be positive", ticket.ErrValidationFailed)
	}

	c, err := s.repo.GetByID(ctx, caseID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load case: %w", err)
	}
	if c == nil {
		return nil, nil, ticket.ErrCaseNotFound
	}
	patch := &ticket.FieldPatch{StaffName: &profile.Name, StaffAmount: &amount}
	updated, err := s.swap(ctx, c, ticket.KindMidman, ticket.StatePaymentPending, ticket.StatePaymentSent, patch)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info().
		Str("case_id", c.ID.String()).
		Str("staff_name", profile.Name).
		Msg("payment details attached")
	return updated, profile, nil
}

// AttachPartner records a manually resolved partner on a midman case.
func (s *Service) AttachPartner(ctx context.Context, caseID uuid.UUID, actor Actor, partner member.Member) (*ticket.Case, error) {
	if !actor.HasRole(s.midmanRoleID) {
		return nil, ticket.ErrForbidden
	}
	c, err := s.repo.GetByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load case: %w", err)
	}
	if c == nil {
		return nil, ticket.ErrCaseNotFound
	}
	if c.Kind != ticket.KindMidman {
		return nil, ticket.ErrInvalidTransition
	}
	missing := false
	ok, err := s.repo.UpdateFields(ctx, caseID, ticket.FieldPatch{PartnerID: &partner.ID, PartnerMissing: &missing})
	if err != nil {
		return nil, fmt.Errorf("failed to attach partner: %w", err)
	}
	if !ok {
		return nil, ticket.ErrCaseNotFound
	}
	c.PartnerID = partner.ID
	c.PartnerMissing = false
	return c, nil
}

// ListByOwner returns the owner's cases.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*ticket.Case, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// GetByID returns a case or ErrCaseNotFound.
func (s *Service) GetByID(ctx context.Context, caseID uuid.UUID) (*ticket.Case, error) {
	c, err := s.repo.GetByID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load case: %w", err)
	}
	if c == nil {
		return nil, ticket.ErrCaseNotFound
	}
	return c, nil
}

func (s *Service) swap(ctx context.Context, c *ticket.Case, kind ticket.Kind, from, to ticket.State, patch *ticket.FieldPatch) (*ticket.Case, error) {
	if c.Kind != kind {
		return nil, ticket.ErrInvalidTransition
	}
	if c.State != from || !c.CanTransitionTo(to) {
		return nil, ticket.ErrInvalidTransition
	}
	swapped, err := s.repo.UpdateState(ctx, c.ID, from, to, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update case state: %w", err)
	}
	if !swapped {
		// Raced with another click: the store no longer holds `from`.
		return nil, ticket.ErrInvalidTransition
	}
	out := *c
	out.State = to
	if patch != nil {
		applyPatch(&out, patch)
	}
	s.logger.Info().
		Str("case_id", c.ID.String()).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("case state advanced")
	return &out, nil
}

// closeCase destroys the record conditionally on its expected state,
// then deletes the channel. The record goes first: a failed store write
// leaves case and channel untouched; a failed channel delete after a
// successful store write is reported for a manual retry (channel delete
// is idempotent, so retrying is safe).
func (s *Service) closeCase(ctx context.Context, c *ticket.Case, from ticket.State) (*ticket.Case, error) {
	deleted, err := s.repo.DeleteInState(ctx, c.ID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to delete case: %w", err)
	}
	if !deleted {
		return nil, ticket.ErrInvalidTransition
	}
	return s.dropChannel(ctx, c)
}

func (s *Service) closeAny(ctx context.Context, c *ticket.Case) (*ticket.Case, error) {
	deleted, err := s.repo.Delete(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete case: %w", err)
	}
	if !deleted {
		return nil, ticket.ErrCaseNotFound
	}
	return s.dropChannel(ctx, c)
}

func (s *Service) dropChannel(ctx context.Context, c *ticket.Case) (*ticket.Case, error) {
	out := *c
	out.State = ticket.StateClosed
	if _, err := s.channels.DeleteChannel(ctx, c.ChannelID); err != nil {
		s.logger.Error().Err(err).
			Str("case_id", c.ID.String()).
			Str("channel_id", c.ChannelID).
			Msg("channel delete failed after case close")
		return &out, fmt.Errorf("%w: case closed but channel delete failed, retry manually", ticket.ErrExternalCallFailed)
	}
	s.logger.Info().Str("case_id", c.ID.String()).Msg("case closed")
	return &out, nil
}

func applyPatch(c *ticket.Case, patch *ticket.FieldPatch) {
	if patch.StaffName != nil {
		c.StaffName = *patch.StaffName
	}
	if patch.StaffAmount != nil {
		c.StaffAmount = *patch.StaffAmount
	}
	if patch.PartnerID != nil {
		c.PartnerID = *patch.PartnerID
	}
	if patch.PartnerMissing != nil {
		c.PartnerMissing = *patch.PartnerMissing
	}
}

func validateLen(name, value string, max int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%w: %s is required", ticket.ErrValidationFailed, name)
	}
	if len(value) > max {
		return fmt.Errorf("%w: %s exceeds %d characters", ticket.ErrValidationFailed, name, max)
	}
	return nil
}
