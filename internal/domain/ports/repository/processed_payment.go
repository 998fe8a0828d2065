package repository

import (
	"context"

	"business-suite-billing/internal/domain/model"
)

// ProcessedPaymentRepository is the idempotency ledger for webhook
// deliveries.
type ProcessedPaymentRepository interface {
	// MarkApplied records the payment id. Returns applied=false when
	// the id was already present (redelivery), with no error.
	MarkApplied(ctx context.Context, tx Tx, p *model.ProcessedPayment) (applied bool, err error)
	// Exists reports whether the payment id has already been applied.
	Exists(ctx context.Context, tx Tx, paymentID string) (bool, error)
}
