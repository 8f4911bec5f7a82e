package ticket

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind distinguishes the two supported case flavors.
type Kind string

const (
	KindShop   Kind = "shop"
	KindMidman Kind = "mm"
)

// State represents a case lifecycle state.
type State string

const (
	StateCreated           State = "CREATED"
	StateAwaitingAgreement State = "AWAITING_AGREEMENT"
	StatePaymentPending    State = "PAYMENT_DETAILS_PENDING"
	StatePaymentSent       State = "PAYMENT_DETAILS_SENT"
	StateClosed            State = "CLOSED"
)

var (
	ErrCaseNotFound       = errors.New("case not found")
	ErrInvalidTransition  = errors.New("invalid case state transition")
	ErrForbidden          = errors.New("actor lacks required role")
	ErrValidationFailed   = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrExternalCallFailed = errors.New("external call failed")
)

// Case is a tracked support or escrow interaction ("ticket").
type Case struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	OwnerID   string    `json:"ownerId"`
	ChannelID string    `json:"channelId"`
	State     State     `json:"state"`

	// Shop fields.
	Category         string `json:"category,omitempty"`
	OrderDescription string `json:"orderDescription,omitempty"`
	Quantity         int    `json:"quantity,omitempty"`
	Notes            string `json:"notes,omitempty"`

	// Midman fields.
	TransactionDescription string          `json:"transactionDescription,omitempty"`
	Amount                 decimal.Decimal `json:"amount,omitempty"`
	PartnerID              string          `json:"partnerId,omitempty"`
	PartnerMissing         bool            `json:"partnerMissing,omitempty"`

	// Set once a staff payment profile is attached.
	StaffName   string          `json:"staffName,omitempty"`
	StaffAmount decimal.Decimal `json:"staffAmount,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// transitions lists legal state moves per kind. Terminal moves that
// destroy the record (shop reject, closing) go through conditional
// deletes instead and are not listed here.
var transitions = map[Kind]map[State][]State{
	KindShop: {
		StateCreated:           {StateAwaitingAgreement},
		StateAwaitingAgreement: {StateClosed},
	},
	KindMidman: {
		StateCreated:        {StatePaymentPending},
		StatePaymentPending: {StatePaymentSent},
		StatePaymentSent:    {StateClosed},
	},
}

// CanTransitionTo validates a state move for the case's kind.
func (c *Case) CanTransitionTo(target State) bool {
	for _, s := range transitions[c.Kind][c.State] {
		if s == target {
			return true
		}
	}
	return false
}

// Validate checks the creation invariants of a case.
func (c *Case) Validate() error {
	if c.OwnerID == "" || c.ChannelID == "" {
		return ErrValidationFailed
	}
	switch c.Kind {
	case KindShop:
		if c.Quantity <= 0 {
			return ErrValidationFailed
		}
	case KindMidman:
		if !c.Amount.IsPositive() {
			return ErrValidationFailed
		}
	default:
		return ErrValidationFailed
	}
	return nil
}
