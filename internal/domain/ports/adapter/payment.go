package adapter

import (
	"context"

	"business-suite-billing/internal/domain/model"
)

// CheckoutProvider abstracts the external payment provider. Both calls
// are blocking network I/O and must honor ctx deadlines.
type CheckoutProvider interface {
	Name() string
	// CreateCheckout opens a checkout session for the plan and returns
	// the provider session id plus the redirect URL for the buyer.
	// externalReference travels to the provider and comes back on the
	// payment lookup; we set it to the user id.
	CreateCheckout(ctx context.Context, plan *model.Plan, externalReference string) (checkoutID, redirectURL string, err error)
	// GetPayment resolves the authoritative payment state by id.
	GetPayment(ctx context.Context, paymentID string) (*model.PaymentInfo, error)
}
