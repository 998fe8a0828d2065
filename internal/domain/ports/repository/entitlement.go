package repository

import (
	"context"

	"business-suite-billing/internal/domain/model"
)

// EntitlementRepository is the port for per-user entitlement records,
// keyed by the opaque user id.
type EntitlementRepository interface {
	// FindByUserID returns the record or domain.ErrNotFound.
	FindByUserID(ctx context.Context, tx Tx, userID string) (*model.Entitlement, error)
	// Save upserts the record.
	Save(ctx context.Context, tx Tx, e *model.Entitlement) error
	// LockUser serializes concurrent extensions for one user inside a
	// transaction. No-op when the backend has no advisory locks.
	LockUser(ctx context.Context, tx Tx, userID string) error
}
