package ticket

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestShopTransitions(t *testing.T) {
	c := &Case{Kind: KindShop, State: StateCreated}
	if !c.CanTransitionTo(StateAwaitingAgreement) {
		t.Fatal("expected CREATED -> AWAITING_AGREEMENT to be legal")
	}
	if c.CanTransitionTo(StateClosed) {
		t.Fatal("CREATED -> CLOSED must not be legal for shop cases")
	}
	c.State = StateAwaitingAgreement
	if !c.CanTransitionTo(StateClosed) {
		t.Fatal("expected AWAITING_AGREEMENT -> CLOSED to be legal")
	}
	if c.CanTransitionTo(StateAwaitingAgreement) {
		t.Fatal("states must not be re-enterable")
	}
}

func TestMidmanTransitions(t *testing.T) {
	c := &Case{Kind: KindMidman, State: StateCreated}
	if !c.CanTransitionTo(StatePaymentPending) {
		t.Fatal("expected CREATED -> PAYMENT_DETAILS_PENDING to be legal")
	}
	if c.CanTransitionTo(StatePaymentSent) {
		t.Fatal("CREATED -> PAYMENT_DETAILS_SENT must not be legal")
	}
	c.State = StatePaymentSent
	if !c.CanTransitionTo(StateClosed) {
		t.Fatal("expected PAYMENT_DETAILS_SENT -> CLOSED to be legal")
	}
}

func TestValidate(t *testing.T) {
	shop := &Case{Kind: KindShop, OwnerID: "1", ChannelID: "2", Quantity: 3}
	if err := shop.Validate(); err != nil {
		t.Fatalf("expected valid shop case: %v", err)
	}
	shop.Quantity = 0
	if err := shop.Validate(); err == nil {
		t.Fatal("expected zero quantity to fail validation")
	}

	mm := &Case{Kind: KindMidman, OwnerID: "1", ChannelID: "2", Amount: decimal.NewFromInt(50)}
	if err := mm.Validate(); err != nil {
		t.Fatalf("expected valid midman case: %v", err)
	}
	mm.Amount = decimal.NewFromInt(-5)
	if err := mm.Validate(); err == nil {
		t.Fatal("expected negative amount to fail validation")
	}
}
