package postgres

import (
	"context"
	"errors"
	"hash/fnv"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"business-suite-billing/internal/domain"
	"business-suite-billing/internal/domain/model"
	"business-suite-billing/internal/domain/ports/repository"
)

var _ repository.EntitlementRepository = (*entitlementRepo)(nil)

type entitlementRepo struct {
	pool *pgxpool.Pool
}

func NewEntitlementRepo(pool *pgxpool.Pool) repository.EntitlementRepository {
	return &entitlementRepo{pool: pool}
}

func (r *entitlementRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Entitlement, error) {
	const q = `
SELECT user_id, status, expires_at, trial_started, display_name, business_name, created_at, updated_at
  FROM entitlements
 WHERE user_id = $1;
`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}

	var e model.Entitlement
	err = row.Scan(
		&e.UserID, &e.Status, &e.ExpiresAt, &e.TrialStarted,
		&e.DisplayName, &e.BusinessName, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &e, nil
}

func (r *entitlementRepo) Save(ctx context.Context, tx repository.Tx, e *model.Entitlement) error {
	const q = `
INSERT INTO entitlements (user_id, status, expires_at, trial_started, display_name, business_name, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (user_id) DO UPDATE SET
  status        = EXCLUDED.status,
  expires_at    = EXCLUDED.expires_at,
  trial_started = EXCLUDED.trial_started,
  display_name  = EXCLUDED.display_name,
  business_name = EXCLUDED.business_name,
  updated_at    = EXCLUDED.updated_at;
`
	_, err := execSQL(ctx, r.pool, tx, q,
		e.UserID, e.Status, e.ExpiresAt, e.TrialStarted,
		e.DisplayName, e.BusinessName, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

// LockUser takes a per-user advisory xact lock so two extensions for the
// same user (two webhooks, or a webhook racing a redemption) serialize
// as read-modify-write instead of losing an update.
func (r *entitlementRepo) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	_, err := execSQL(ctx, r.pool, tx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(userID))
	return err
}

func hashToInt64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & ((1 << 63) - 1))
}
