package lifecycle

import (
	"fmt"

	"github.com/caseflow/caseflow/internal/domain/action"
	"github.com/caseflow/caseflow/internal/domain/ticket"
)

// ViewKind names a renderable surface.
type ViewKind string

const (
	ViewOrderConfirmation ViewKind = "order_confirmation"
	ViewOrderAgreement    ViewKind = "order_agreement"
	ViewMidmanIntro       ViewKind = "midman_intro"
	ViewPaymentRequest    ViewKind = "payment_request"
	ViewStaffConfirmation ViewKind = "staff_confirmation"
	ViewCustomerPayment   ViewKind = "customer_payment"
)

// Control is a UI control to attach to a rendered view. Token is empty
// for renderer-local controls (clipboard copy, image zoom) that never
// reach the engine.
type Control struct {
	Label string `json:"label"`
	Token string `json:"token,omitempty"`
}

// ViewDescriptor is what the external renderer displays: field values
// plus the next action tokens.
type ViewDescriptor struct {
	Kind     ViewKind          `json:"kind"`
	Fields   map[string]string `json:"fields,omitempty"`
	Controls []Control         `json:"controls,omitempty"`
}

// OrderConfirmationView is the "is this your order?" surface shown right
// after shop case creation.
func OrderConfirmationView(c *ticket.Case) (*ViewDescriptor, error) {
	yes, err := action.Encode(action.Token{Op: action.TypeConfirmShop, CaseID: c.ID.String()})
	if err != nil {
		return nil, err
	}
	no, err := action.Encode(action.Token{Op: action.TypeRejectShop, CaseID: c.ID.String()})
	if err != nil {
		return nil, err
	}
	return &ViewDescriptor{
		Kind: ViewOrderConfirmation,
		Fields: map[string]string{
			"category": c.Category,
			"order":    c.OrderDescription,
			"quantity": fmt.Sprintf("%d", c.Quantity),
			"notes":    c.Notes,
			"owner":    c.OwnerID,
		},
		Controls: []Control{
			{Label: "Yes", Token: yes},
			{Label: "No", Token: no},
		},
	}, nil
}

// OrderAgreementView asks for final commitment after confirmation.
func OrderAgreementView(c *ticket.Case) (*ViewDescriptor, error) {
	agree, err := action.Encode(action.Token{Op: action.TypeAgreeShop, CaseID: c.ID.String()})
	if err != nil {
		return nil, err
	}
	return &ViewDescriptor{
		Kind: ViewOrderAgreement,
		Fields: map[string]string{
			"warning": "No refunds will be issued after payment is sent.",
		},
		Controls: []Control{{Label: "Agree", Token: agree}},
	}, nil
}

// MidmanIntroView is the opening surface of a midman case, including the
// staff-only payment-details request control.
func MidmanIntroView(c *ticket.Case) (*ViewDescriptor, error) {
	request, err := action.Encode(action.Token{Op: action.TypeRequestPaymentDetails, CaseID: c.ID.String()})
	if err != nil {
		return nil, err
	}
	closeTok, err := action.Encode(action.Token{Op: action.TypeCloseCase, CaseID: c.ID.String()})
	if err != nil {
		return nil, err
	}
	partner := c.PartnerID
	if c.PartnerMissing {
		partner = "manual attach required"
	}
	return &ViewDescriptor{
		Kind: ViewMidmanIntro,
		Fields: map[string]string{
			"transaction": c.TransactionDescription,
			"amount":      c.Amount.String(),
			"partner":     partner,
			"owner":       c.OwnerID,
		},
		Controls: []Control{
			{Label: "Send payment details", Token: request},
			{Label: "Close", Token: closeTok},
		},
	}, nil
}

// PaymentRequestView carries the pay control broadcast to the channel
// after a staff profile is attached.
func (s *Service) PaymentRequestView(c *ticket.Case) (*ViewDescriptor, error) {
	pay, err := action.Encode(action.Token{
		Op:        action.TypePay,
		CaseID:    c.ID.String(),
		StaffName: c.StaffName,
		Amount:    c.StaffAmount,
	})
	if err != nil {
		return nil, err
	}
	fields := map[string]string{"amount": c.StaffAmount.String()}
	if p := s.registry.Lookup(c.StaffName); p != nil && p.QRImageRef != "" {
		fields["qr"] = p.QRImageRef
	}
	return &ViewDescriptor{
		Kind:     ViewPaymentRequest,
		Fields:   fields,
		Controls: []Control{{Label: "Pay " + c.StaffAmount.String(), Token: pay}},
	}, nil
}

// PaymentView resolves the role-gated payment surface: the same pay
// token yields the staff confirmation view for staff and the customer
// payment-details view for everyone else. Read-only; the engine stays
// the single source of truth for what each role sees.
func (s *Service) PaymentView(c *ticket.Case, actor Actor) (*ViewDescriptor, error) {
	if c.Kind != ticket.KindMidman || c.State != ticket.StatePaymentSent {
		return nil, ticket.ErrInvalidTransition
	}
	profile := s.registry.Lookup(c.StaffName)
	if profile == nil {
		return nil, fmt.Errorf("%w: staff payment profile %q", ticket.ErrNotFound, c.StaffName)
	}

	if actor.HasRole(s.midmanRoleID) || actor.HasRole(s.supportRoleID) {
		confirm, err := action.Encode(action.Token{Op: action.TypeConfirmPaymentReceived, CaseID: c.ID.String()})
		if err != nil {
			return nil, err
		}
		return &ViewDescriptor{
			Kind:     ViewStaffConfirmation,
			Fields:   map[string]string{"question": "Has the payment been received?"},
			Controls: []Control{{Label: "Yes", Token: confirm}},
		}, nil
	}

	fields := map[string]string{
		"accountNumber": profile.AccountNumber,
		"displayName":   profile.DisplayName,
		"amount":        c.StaffAmount.String(),
	}
	controls := []Control{{Label: "Copy Number"}}
	if profile.QRImageRef != "" {
		fields["qr"] = profile.QRImageRef
		controls = append(controls, Control{Label: "View QR Code"})
	}
	return &ViewDescriptor{
		Kind:     ViewCustomerPayment,
		Fields:   fields,
		Controls: controls,
	}, nil
}
