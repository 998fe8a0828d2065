package model

import "time"

// CheckoutIntent is the ephemeral result of creating a checkout session
// with the external provider. It is not persisted; the webhook flow is
// the only path that mutates entitlements.
type CheckoutIntent struct {
	Reference   string // our idempotent reference for the session
	UserID      string
	PlanID      string
	Amount      int64
	CheckoutID  string // provider-side session id
	RedirectURL string
	CreatedAt   time.Time
}

// PaymentInfo is the authoritative payment state fetched from the
// provider's lookup endpoint. Inbound webhook payloads are trusted only
// for "go fetch payment X"; everything else comes from here.
type PaymentInfo struct {
	ID                string
	Status            string // "approved", "pending", "rejected", ...
	ExternalReference string // our user id, echoed back by the provider
	PlanID            string // plan identifier attached at checkout time
	Amount            int64
}

const PaymentStatusApproved = "approved"

// ProcessedPayment is one row of the idempotency ledger. Providers
// redeliver notifications; a payment id already present here must never
// extend the entitlement a second time.
type ProcessedPayment struct {
	PaymentID string
	UserID    string
	PlanID    string
	AppliedAt time.Time
}
