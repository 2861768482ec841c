// Package payment adapts external payment providers behind one contract.
// Immediate-capture gateways are final on Initiate; two-phase gateways hand
// back an approval URL and require Confirm to reach a terminal state.
package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/trellismart/backend/internal/apperr"
)

// Method selects a payment gateway. Parsed once at the edge; everything
// below dispatches on the enum, never on the raw string.
type Method int

const (
	MethodUnknown Method = iota
	MethodStripe
	MethodPayPal
)

func (m Method) String() string {
	switch m {
	case MethodStripe:
		return "stripe"
	case MethodPayPal:
		return "paypal"
	default:
		return "unknown"
	}
}

// ParseMethod maps the wire value to a Method.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "stripe":
		return MethodStripe, nil
	case "paypal":
		return MethodPayPal, nil
	default:
		return MethodUnknown, apperr.Validationf("invalid payment method %q", s)
	}
}

// PayerDetails is what providers need to know about the payer.
type PayerDetails struct {
	Email string `json:"email"`
}

// Result is the outcome of Initiate. ApprovalURL is set only by two-phase
// gateways; the associated order is not settled until Confirm.
type Result struct {
	TransactionID string
	ApprovalURL   string
}

// Capture is the terminal outcome of a two-phase Confirm.
type Capture struct {
	TransactionID string
	Status        string
}

// Gateway is the shared contract over payment providers.
type Gateway interface {
	Initiate(ctx context.Context, amount decimal.Decimal, payer PayerDetails) (*Result, error)
}

// TwoPhaseGateway requires a separate confirmation after the payer approves.
type TwoPhaseGateway interface {
	Gateway
	Confirm(ctx context.Context, reference string) (*Capture, error)
}

// floorCents converts a decimal amount to the smallest currency unit,
// flooring. Providers reject fractional cents; the orchestrator never sees
// this conversion.
func floorCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}
