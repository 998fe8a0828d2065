// File: internal/usecase/redemption_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"business-suite-billing/internal/domain"
	"business-suite-billing/internal/domain/model"
	"business-suite-billing/internal/domain/ports/repository"
	"business-suite-billing/internal/infra/metrics"
)

// RedemptionUseCase consumes one-time codes and extends entitlements.
type RedemptionUseCase struct {
	codes repository.RedemptionCodeRepository
	ents  repository.EntitlementRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
	now   func() time.Time
}

func NewRedemptionUseCase(codes repository.RedemptionCodeRepository, ents repository.EntitlementRepository, tm repository.TransactionManager, logger *zerolog.Logger) *RedemptionUseCase {
	return &RedemptionUseCase{codes: codes, ents: ents, tm: tm, log: logger, now: time.Now}
}

// Redeem validates and atomically consumes a code for the user. The
// whole flow runs in one serializable transaction: the conditional
// consume and the entitlement write land together or not at all, and
// under concurrent attempts on the same code at most one succeeds.
func (uc *RedemptionUseCase) Redeem(ctx context.Context, userID, rawCode string) (*model.Entitlement, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	codeStr := NormalizeCode(rawCode)
	if codeStr == "" {
		return nil, domain.ErrInvalidArgument
	}

	var out *model.Entitlement
	txOpt := pgx.TxOptions{IsoLevel: pgx.Serializable}
	redeem := func(ctx context.Context, tx repository.Tx) error {
		code, err := uc.codes.FindByCode(ctx, tx, codeStr)
		if err != nil {
			return err // ErrCodeNotFound passes through
		}
		if code.IsUsed {
			return domain.ErrCodeAlreadyUsed
		}

		if err := uc.ents.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		ent, err := uc.ents.FindByUserID(ctx, tx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			ent = model.NewEntitlement(userID, uc.now())
		} else if err != nil {
			return err
		}

		now := uc.now()
		exp := code.Duration.Extend(ent.ExpiresAt, now)
		ent.Status = model.EntitlementStatusActive
		ent.ExpiresAt = &exp
		ent.UpdatedAt = now

		// Conditioned on the unused read; a racing writer makes this
		// fail with ErrCodeAlreadyUsed and rolls the whole tx back.
		if err := uc.codes.Consume(ctx, tx, codeStr, userID); err != nil {
			return err
		}
		if err := uc.ents.Save(ctx, tx, ent); err != nil {
			return err
		}
		out = ent
		return nil
	}

	err := uc.tm.WithTx(ctx, txOpt, redeem)
	if isSerializationFailure(err) {
		// The loser of a concurrent same-code redemption aborts with
		// 40001. One retry re-reads the winner's commit, so the code
		// either redeems cleanly or reports as already used.
		err = uc.tm.WithTx(ctx, txOpt, redeem)
		if isSerializationFailure(err) {
			err = domain.ErrCodeAlreadyUsed
		}
	}
	if err != nil {
		metrics.IncRedemption("failed")
		return nil, err
	}

	metrics.IncRedemption("succeeded")
	uc.log.Info().Str("user_id", userID).Time("expires_at", *out.ExpiresAt).Msg("code redeemed")
	return out, nil
}

// GenerateCode mints and persists a fresh unused code for the duration.
func (uc *RedemptionUseCase) GenerateCode(ctx context.Context, duration model.PlanDuration) (*model.RedemptionCode, error) {
	if duration.IsZero() {
		return nil, domain.ErrInvalidArgument
	}

	// Collisions over a 32^12 space are vanishingly rare; retry a few
	// times anyway since Save enforces uniqueness.
	for attempt := 0; attempt < 3; attempt++ {
		codeStr, err := generateCode()
		if err != nil {
			return nil, err
		}
		code := &model.RedemptionCode{
			Code:      codeStr,
			Duration:  duration,
			CreatedAt: uc.now(),
		}
		if err := uc.codes.Save(ctx, repository.NoTX, code); err != nil {
			continue
		}
		return code, nil
	}
	return nil, domain.ErrOperationFailed
}

// NormalizeCode uppercases and strips surrounding whitespace so codes
// typed by hand still match.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// isSerializationFailure reports a serializable-isolation abort
// (SQLSTATE 40001): the transaction lost a race and is safe to rerun.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}
