// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"business-suite-billing/internal/domain"
	"business-suite-billing/internal/domain/model"
	"business-suite-billing/internal/domain/ports/adapter"
	"business-suite-billing/internal/infra/metrics"
)

// PaymentIntentUseCase opens provider checkout sessions. It never
// mutates entitlements; only the webhook flow does that.
type PaymentIntentUseCase struct {
	plans    []model.Plan
	provider adapter.CheckoutProvider // nil when the credential is missing
	log      *zerolog.Logger
	now      func() time.Time
}

// NewPaymentIntentUseCase accepts a nil provider: a missing server
// credential keeps the rest of the app serving, and intent creation
// fails with ErrConfiguration without ever logging the secret.
func NewPaymentIntentUseCase(plans []model.Plan, provider adapter.CheckoutProvider, logger *zerolog.Logger) *PaymentIntentUseCase {
	return &PaymentIntentUseCase{plans: plans, provider: provider, log: logger, now: time.Now}
}

func (uc *PaymentIntentUseCase) planByID(id string) (*model.Plan, bool) {
	for i := range uc.plans {
		if uc.plans[i].ID == id {
			return &uc.plans[i], true
		}
	}
	return nil, false
}

// Plans exposes the server-side catalog for the activation surface.
func (uc *PaymentIntentUseCase) Plans() []model.Plan { return uc.plans }

// CreateIntent looks the plan up server-side (client prices are never
// trusted), opens the checkout with external_reference=userID and
// returns the redirect URL.
func (uc *PaymentIntentUseCase) CreateIntent(ctx context.Context, userID, planID string) (*model.CheckoutIntent, error) {
	if userID == "" || planID == "" {
		return nil, domain.ErrInvalidArgument
	}
	plan, ok := uc.planByID(planID)
	if !ok {
		return nil, domain.ErrNotFound
	}
	if uc.provider == nil {
		uc.log.Error().Msg("payment provider credential not configured")
		return nil, domain.ErrConfiguration
	}

	checkoutID, redirectURL, err := uc.provider.CreateCheckout(ctx, plan, userID)
	if err != nil {
		metrics.IncCheckoutIntent("failed")
		return nil, err
	}

	metrics.IncCheckoutIntent("created")
	intent := &model.CheckoutIntent{
		Reference:   ulid.Make().String(),
		UserID:      userID,
		PlanID:      plan.ID,
		Amount:      plan.Price,
		CheckoutID:  checkoutID,
		RedirectURL: redirectURL,
		CreatedAt:   uc.now(),
	}
	uc.log.Info().Str("user_id", userID).Str("plan_id", plan.ID).Str("checkout_id", checkoutID).Msg("checkout intent created")
	return intent, nil
}
