// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"business-suite-billing/internal/domain"
	"business-suite-billing/internal/domain/model"
	"business-suite-billing/internal/domain/ports/adapter"
	"business-suite-billing/internal/domain/ports/repository"
	"business-suite-billing/internal/infra/logging"
	"business-suite-billing/internal/infra/metrics"
)

// WebhookOutcome classifies a processed notification for the transport
// layer and for metrics.
type WebhookOutcome string

const (
	OutcomeIgnored   WebhookOutcome = "ignored"   // no-op: wrong type, non-approved status, unresolvable data
	OutcomeApplied   WebhookOutcome = "applied"   // entitlement extended
	OutcomeDuplicate WebhookOutcome = "duplicate" // payment id already in the ledger
)

// AppliedCache is a best-effort fast path over the processed-payment
// ledger; redis implements it. A nil cache is valid.
type AppliedCache interface {
	Seen(ctx context.Context, paymentID string) bool
	Remember(ctx context.Context, paymentID string)
}

// notification is the tagged-variant parse of the inbound payload. Only
// the payment id is ever trusted; business data comes from the provider
// lookup.
type notification struct {
	Type string `json:"type"`
	Data struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// parseNotification validates shape before dispatch. Anything
// non-conforming is reported as not-ok, never as an error that could
// trigger a provider retry storm.
func parseNotification(raw []byte) (typ, paymentID string, ok bool) {
	var n notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", "", false
	}
	return n.Type, n.Data.ID.String(), true
}

// WebhookUseCase ingests payment-status notifications and extends
// entitlements for approved payments, exactly once per payment id.
type WebhookUseCase struct {
	provider  adapter.CheckoutProvider
	ents      repository.EntitlementRepository
	processed repository.ProcessedPaymentRepository
	tm        repository.TransactionManager
	plans     []model.Plan
	cache     AppliedCache
	timeout   time.Duration
	log       *zerolog.Logger
	now       func() time.Time
}

func NewWebhookUseCase(
	provider adapter.CheckoutProvider,
	ents repository.EntitlementRepository,
	processed repository.ProcessedPaymentRepository,
	tm repository.TransactionManager,
	plans []model.Plan,
	cache AppliedCache,
	timeout time.Duration,
	logger *zerolog.Logger,
) *WebhookUseCase {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookUseCase{
		provider:  provider,
		ents:      ents,
		processed: processed,
		tm:        tm,
		plans:     plans,
		cache:     cache,
		timeout:   timeout,
		log:       logger,
		now:       time.Now,
	}
}

func (uc *WebhookUseCase) planByID(id string) (*model.Plan, bool) {
	for i := range uc.plans {
		if uc.plans[i].ID == id {
			return &uc.plans[i], true
		}
	}
	return nil, false
}

// HandleNotification processes one inbound delivery.
//
// Error contract for the transport layer:
//   - (outcome, nil): acknowledge. Ignored covers malformed payloads,
//     non-payment types, non-approved statuses and permanently
//     unresolvable payments.
//   - domain.ErrInvalidArgument: authoritative data failed validation
//     (missing external reference or plan); client error, no retry.
//   - domain.ErrTransient: lookup timed out, provider was unreachable,
//     or the entitlement write failed; respond retryable so the
//     provider redelivers.
func (uc *WebhookUseCase) HandleNotification(ctx context.Context, raw []byte) (WebhookOutcome, error) {
	typ, paymentID, ok := parseNotification(raw)
	if !ok {
		uc.log.Warn().Int("bytes", len(raw)).Msg("malformed webhook payload acknowledged")
		metrics.IncWebhook(string(OutcomeIgnored))
		return OutcomeIgnored, nil
	}
	if typ != "payment" || paymentID == "" {
		metrics.IncWebhook(string(OutcomeIgnored))
		return OutcomeIgnored, nil
	}
	ctx = logging.WithPaymentID(ctx, paymentID)
	log := logging.With(ctx, uc.log)

	// Fast path: recently applied payment ids skip the provider call
	// and the transaction entirely. The transactional MarkApplied below
	// stays authoritative; these checks only save round trips.
	if uc.cache != nil && uc.cache.Seen(ctx, paymentID) {
		metrics.IncWebhook(string(OutcomeDuplicate))
		return OutcomeDuplicate, nil
	}
	if seen, err := uc.processed.Exists(ctx, repository.NoTX, paymentID); err == nil && seen {
		if uc.cache != nil {
			uc.cache.Remember(ctx, paymentID)
		}
		metrics.IncWebhook(string(OutcomeDuplicate))
		return OutcomeDuplicate, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	info, err := uc.provider.GetPayment(lookupCtx, paymentID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// Redelivery cannot make an unknown payment appear.
			log.Warn().Msg("payment unknown to provider, acknowledged")
			metrics.IncWebhook(string(OutcomeIgnored))
			return OutcomeIgnored, nil
		case errors.Is(err, domain.ErrTransient):
			return "", err
		default:
			return "", fmt.Errorf("%w: %v", domain.ErrTransient, err)
		}
	}

	if info.Status != model.PaymentStatusApproved {
		log.Debug().Str("status", info.Status).Msg("non-approved payment acknowledged")
		metrics.IncWebhook(string(OutcomeIgnored))
		return OutcomeIgnored, nil
	}
	if info.ExternalReference == "" || info.PlanID == "" {
		log.Error().Msg("approved payment missing reference or plan")
		metrics.IncWebhook("invalid")
		return "", domain.ErrInvalidArgument
	}
	plan, ok := uc.planByID(info.PlanID)
	if !ok {
		log.Error().Str("plan_id", info.PlanID).Msg("approved payment names unknown plan")
		metrics.IncWebhook("invalid")
		return "", domain.ErrInvalidArgument
	}

	userID := info.ExternalReference
	outcome := OutcomeApplied
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.ents.LockUser(ctx, tx, userID); err != nil {
			return err
		}

		// Ledger insert and entitlement write share the transaction, so
		// a redelivered payment can never double-extend.
		applied, err := uc.processed.MarkApplied(ctx, tx, &model.ProcessedPayment{
			PaymentID: paymentID,
			UserID:    userID,
			PlanID:    plan.ID,
			AppliedAt: uc.now(),
		})
		if err != nil {
			return err
		}
		if !applied {
			outcome = OutcomeDuplicate
			return nil
		}

		ent, err := uc.ents.FindByUserID(ctx, tx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			ent = model.NewEntitlement(userID, uc.now())
		} else if err != nil {
			return err
		}

		now := uc.now()
		exp := plan.Duration.Extend(ent.ExpiresAt, now)
		ent.Status = model.EntitlementStatusActive
		ent.ExpiresAt = &exp
		ent.UpdatedAt = now
		return uc.ents.Save(ctx, tx, ent)
	})
	if err != nil {
		// Failure writing the update is retryable by contract.
		metrics.IncWebhook("failed")
		return "", fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}

	if uc.cache != nil {
		uc.cache.Remember(ctx, paymentID)
	}
	metrics.IncWebhook(string(outcome))
	if outcome == OutcomeApplied {
		metrics.AddRevenue(plan.Currency, info.Amount)
		log.Info().Str("user_id", userID).Str("plan_id", plan.ID).Msg("payment applied")
	}
	return outcome, nil
}
