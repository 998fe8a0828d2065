// File: internal/usecase/entitlement_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"business-suite-billing/internal/domain"
	"business-suite-billing/internal/domain/model"
	"business-suite-billing/internal/domain/ports/repository"
	"business-suite-billing/internal/infra/metrics"
)

// EntitlementUseCase bootstraps, observes and trial-starts entitlement
// records. Extension through codes and payments lives in the redemption
// and webhook use cases.
type EntitlementUseCase struct {
	ents      repository.EntitlementRepository
	tm        repository.TransactionManager
	trialDays int
	log       *zerolog.Logger
	now       func() time.Time
}

func NewEntitlementUseCase(ents repository.EntitlementRepository, tm repository.TransactionManager, trialDays int, logger *zerolog.Logger) *EntitlementUseCase {
	if trialDays <= 0 {
		trialDays = 14
	}
	return &EntitlementUseCase{ents: ents, tm: tm, trialDays: trialDays, log: logger, now: time.Now}
}

// Get returns the user's record, bootstrapping an inactive one the
// first time the user is observed. The bootstrap re-reads under the
// per-user lock: a webhook landing between the two reads wins, and its
// record is returned instead of being overwritten by the blank one.
func (uc *EntitlementUseCase) Get(ctx context.Context, userID string) (*model.Entitlement, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	ent, err := uc.ents.FindByUserID(ctx, repository.NoTX, userID)
	if err == nil {
		return ent, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	var out *model.Entitlement
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.ents.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		cur, err := uc.ents.FindByUserID(ctx, tx, userID)
		if err == nil {
			out = cur
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		out = model.NewEntitlement(userID, uc.now())
		return uc.ents.Save(ctx, tx, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Observe is the lazy-expiration hook: it loads the record and, when the
// stored active flag has lapsed, writes status back to inactive before
// the caller decides anything. The write is a locked read-modify-write,
// so an extension committing after the first read survives: the re-read
// sees it and the flip is skipped. Callers must still recompute
// active-ness from the expiry; the write here only un-stales the flag.
func (uc *EntitlementUseCase) Observe(ctx context.Context, userID string) (*model.Entitlement, error) {
	ent, err := uc.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ent.Lapsed(uc.now()) {
		return ent, nil
	}

	flipped := false
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.ents.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		cur, err := uc.ents.FindByUserID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !cur.Lapsed(uc.now()) {
			ent = cur
			return nil
		}
		cur.Status = model.EntitlementStatusInactive
		cur.UpdatedAt = uc.now()
		if err := uc.ents.Save(ctx, tx, cur); err != nil {
			return err
		}
		ent = cur
		flipped = true
		return nil
	})
	if err != nil {
		// The gate decision stays correct without this write.
		uc.log.Warn().Err(err).Str("user_id", userID).Msg("lazy expiration write failed")
		return ent, nil
	}
	if flipped {
		metrics.IncEntitlementExpired()
	}
	return ent, nil
}

// UpdateProfile stores the business details shown on the account page.
// Runs as a locked read-modify-write so it cannot roll back an
// entitlement extension committing concurrently.
func (uc *EntitlementUseCase) UpdateProfile(ctx context.Context, userID, displayName, businessName string) (*model.Entitlement, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	var out *model.Entitlement
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.ents.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		ent, err := uc.ents.FindByUserID(ctx, tx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			ent = model.NewEntitlement(userID, uc.now())
		} else if err != nil {
			return err
		}
		ent.DisplayName = displayName
		ent.BusinessName = businessName
		ent.UpdatedAt = uc.now()
		if err := uc.ents.Save(ctx, tx, ent); err != nil {
			return err
		}
		out = ent
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// StartTrial grants the one-shot trial window. A second call fails with
// ErrTrialAlreadyUsed regardless of whether the trial has lapsed.
func (uc *EntitlementUseCase) StartTrial(ctx context.Context, userID string) (*model.Entitlement, error) {
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	var out *model.Entitlement
	err := uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.ents.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		ent, err := uc.ents.FindByUserID(ctx, tx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			ent = model.NewEntitlement(userID, uc.now())
		} else if err != nil {
			return err
		}
		if ent.TrialStarted {
			return domain.ErrTrialAlreadyUsed
		}

		now := uc.now()
		d := model.PlanDuration{Days: uc.trialDays}
		exp := d.Extend(ent.ExpiresAt, now)
		ent.Status = model.EntitlementStatusActive
		ent.ExpiresAt = &exp
		ent.TrialStarted = true
		ent.UpdatedAt = now
		if err := uc.ents.Save(ctx, tx, ent); err != nil {
			return err
		}
		out = ent
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.IncTrialStarted()
	uc.log.Info().Str("user_id", userID).Time("expires_at", *out.ExpiresAt).Msg("trial started")
	return out, nil
}
