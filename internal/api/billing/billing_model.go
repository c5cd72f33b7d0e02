package billing

import (
	"errors"

	"github.com/briefly-ai/briefly-api/internal/types"
)

// ErrPaymentIncomplete is returned when a checkout session is confirmed
// before Stripe reports it as paid.
var ErrPaymentIncomplete = errors.New("checkout session not paid")

// ErrSessionMismatch is returned when a user tries to confirm a checkout
// session that was created for someone else.
var ErrSessionMismatch = errors.New("checkout session belongs to a different user")

// ErrUnknownPrice is returned when a session's price ID maps to no tier.
var ErrUnknownPrice = errors.New("unknown price id")

// CheckoutRequest is the body of POST /billing/checkout.
type CheckoutRequest struct {
	Tier types.PlanTier `json:"tier"`
}

// CheckoutResponse carries the hosted Checkout page URL.
type CheckoutResponse struct {
	URL string `json:"url"`
}

// ConfirmRequest is the body of POST /billing/confirm.
type ConfirmRequest struct {
	SessionID string `json:"session_id"`
}

// ConfirmResponse reports the tier that was applied.
type ConfirmResponse struct {
	Success bool           `json:"success"`
	Tier    types.PlanTier `json:"tier"`
}
