package repository

import (
	"context"

	"business-suite-billing/internal/domain/model"
)

// RedemptionCodeRepository is the port for managing redemption codes.
type RedemptionCodeRepository interface {
	// Save persists a freshly minted, unused code.
	Save(ctx context.Context, tx Tx, code *model.RedemptionCode) error
	// FindByCode returns the code regardless of used state.
	FindByCode(ctx context.Context, tx Tx, code string) (*model.RedemptionCode, error)
	// Consume marks the code used by userID, conditioned on it still
	// being unused. Returns domain.ErrCodeAlreadyUsed when another
	// writer raced the transition.
	Consume(ctx context.Context, tx Tx, code, userID string) error
}
