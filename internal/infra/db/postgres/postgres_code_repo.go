package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"business-suite-billing/internal/domain"
	"business-suite-billing/internal/domain/model"
	"business-suite-billing/internal/domain/ports/repository"
)

// Ensure implementation satisfies the interface.
var _ repository.RedemptionCodeRepository = (*codeRepo)(nil)

type codeRepo struct {
	pool *pgxpool.Pool
}

func NewRedemptionCodeRepo(pool *pgxpool.Pool) repository.RedemptionCodeRepository {
	return &codeRepo{pool: pool}
}

func (r *codeRepo) Save(ctx context.Context, tx repository.Tx, code *model.RedemptionCode) error {
	const q = `
INSERT INTO redemption_codes (code, duration_days, duration_months, duration_years, is_used, used_by_user_id, used_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`
	_, err := execSQL(ctx, r.pool, tx, q,
		code.Code, code.Duration.Days, code.Duration.Months, code.Duration.Years,
		code.IsUsed, code.UsedByUserID, code.UsedAt, code.CreatedAt,
	)
	return err
}

func (r *codeRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.RedemptionCode, error) {
	const q = `
SELECT code, duration_days, duration_months, duration_years, is_used, used_by_user_id, used_at, created_at
  FROM redemption_codes
 WHERE code = $1;
`
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}

	var c model.RedemptionCode
	err = row.Scan(
		&c.Code, &c.Duration.Days, &c.Duration.Months, &c.Duration.Years,
		&c.IsUsed, &c.UsedByUserID, &c.UsedAt, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCodeNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &c, nil
}

// Consume flips is_used conditioned on the unused read. Zero rows
// affected means another writer won the race.
func (r *codeRepo) Consume(ctx context.Context, tx repository.Tx, code, userID string) error {
	const q = `
UPDATE redemption_codes
   SET is_used = TRUE, used_by_user_id = $2, used_at = $3
 WHERE code = $1 AND is_used = FALSE;
`
	tag, err := execSQL(ctx, r.pool, tx, q, code, userID, time.Now())
	if err != nil {
		// Keep the pg error in the chain: the caller classifies
		// serialization aborts.
		return fmt.Errorf("%w: %w", domain.ErrOperationFailed, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCodeAlreadyUsed
	}
	return nil
}
