package action

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Type identifies an operation carried by a UI control.
type Type string

const (
	TypeCreateShop             Type = "create_shop"
	TypeConfirmShop            Type = "confirm_shop"
	TypeRejectShop             Type = "reject_shop"
	TypeAgreeShop              Type = "agree_shop"
	TypeCreateMidman           Type = "create_midman"
	TypeRequestPaymentDetails  Type = "request_payment_details"
	TypePay                    Type = "pay"
	TypeConfirmPaymentReceived Type = "confirm_payment_received"
	TypeCloseCase              Type = "close_case"
)

// Separator joins token fields. No field value may contain it.
const Separator = ":"

// MaxTokenLen is the hard ceiling of the platform's opaque control id.
const MaxTokenLen = 100

var (
	ErrMalformedToken = errors.New("malformed action token")
	ErrTooFewFields   = errors.New("action token has too few fields")
	ErrNotANumber     = errors.New("action token numeric field does not parse")
	ErrTokenTooLong   = errors.New("action token exceeds length ceiling")
	ErrUnsafeParam    = errors.New("action token parameter contains separator")
)

// prefixes maps each operation to its fixed token prefix. Prefixes are
// stable identifiers: controls rendered before a restart must still decode.
var prefixes = map[Type]string{
	TypeCreateShop:             "mkshop",
	TypeConfirmShop:            "okshop",
	TypeRejectShop:             "noshop",
	TypeAgreeShop:              "agshop",
	TypeCreateMidman:           "mkmm",
	TypeRequestPaymentDetails:  "reqpay",
	TypePay:                    "pay",
	TypeConfirmPaymentReceived: "gotpay",
	TypeCloseCase:              "close",
}

var typeByPrefix = func() map[string]Type {
	m := make(map[string]Type, len(prefixes))
	for t, p := range prefixes {
		m[p] = t
	}
	return m
}()

// Token correlates a UI control to an operation on a case. Create
// operations carry no case id; Pay additionally carries the staff
// payment profile name and the amount due.
type Token struct {
	Op        Type
	CaseID    string
	StaffName string
	Amount    decimal.Decimal
}

// IsCreate reports whether the token opens a case creation form.
func (t Token) IsCreate() bool {
	return t.Op == TypeCreateShop || t.Op == TypeCreateMidman
}

// Encode renders the token as prefix-joined fields. It fails rather than
// truncate when the result would not fit the platform's control id field,
// and rejects any field containing the separator.
func Encode(t Token) (string, error) {
	prefix, ok := prefixes[t.Op]
	if !ok {
		return "", ErrMalformedToken
	}
	parts := []string{prefix}
	if !t.IsCreate() {
		if strings.Contains(t.CaseID, Separator) {
			return "", ErrUnsafeParam
		}
		parts = append(parts, t.CaseID)
	}
	if t.Op == TypePay {
		if strings.Contains(t.StaffName, Separator) {
			return "", ErrUnsafeParam
		}
		parts = append(parts, t.StaffName, t.Amount.String())
	}
	s := strings.Join(parts, Separator)
	if len(s) > MaxTokenLen {
		return "", ErrTokenTooLong
	}
	return s, nil
}

// Decode parses a token string. Unrecognized prefixes are malformed
// (likely stale or tampered controls); a recognized prefix with missing
// or non-numeric fields is an internal bug and reported distinctly.
func Decode(s string) (Token, error) {
	if s == "" || len(s) > MaxTokenLen {
		return Token{}, ErrMalformedToken
	}
	parts := strings.Split(s, Separator)
	op, ok := typeByPrefix[parts[0]]
	if !ok {
		return Token{}, ErrMalformedToken
	}
	t := Token{Op: op}
	want := 1
	if !t.IsCreate() {
		want = 2
	}
	if op == TypePay {
		want = 4
	}
	if len(parts) < want {
		return Token{}, ErrTooFewFields
	}
	if len(parts) > want {
		return Token{}, ErrMalformedToken
	}
	if !t.IsCreate() {
		t.CaseID = parts[1]
	}
	if op == TypePay {
		t.StaffName = parts[2]
		amount, err := decimal.NewFromString(parts[3])
		if err != nil {
			return Token{}, ErrNotANumber
		}
		t.Amount = amount
	}
	return t, nil
}
