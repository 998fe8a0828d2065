package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"business-suite-billing/internal/domain"
	"business-suite-billing/internal/domain/model"
	"business-suite-billing/internal/domain/ports/repository"
)

var _ repository.ProcessedPaymentRepository = (*processedPaymentRepo)(nil)

type processedPaymentRepo struct {
	pool *pgxpool.Pool
}

func NewProcessedPaymentRepo(pool *pgxpool.Pool) repository.ProcessedPaymentRepository {
	return &processedPaymentRepo{pool: pool}
}

// MarkApplied inserts into the idempotency ledger. ON CONFLICT DO
// NOTHING turns a redelivery into applied=false instead of an error, so
// the caller can skip the extension inside the same transaction.
func (r *processedPaymentRepo) MarkApplied(ctx context.Context, tx repository.Tx, p *model.ProcessedPayment) (bool, error) {
	const q = `
INSERT INTO processed_payments (payment_id, user_id, plan_id, applied_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (payment_id) DO NOTHING;
`
	tag, err := execSQL(ctx, r.pool, tx, q, p.PaymentID, p.UserID, p.PlanID, p.AppliedAt)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() == 1, nil
}

func (r *processedPaymentRepo) Exists(ctx context.Context, tx repository.Tx, paymentID string) (bool, error) {
	const q = `SELECT 1 FROM processed_payments WHERE payment_id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, paymentID)
	if err != nil {
		return false, err
	}
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, domain.ErrReadDatabaseRow
	}
	return true, nil
}
