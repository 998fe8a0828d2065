package model

import (
	"time"

	"business-suite-billing/internal/domain"
)

// PlanDuration describes a calendar offset granted by a plan or a
// redemption code. Months and years are calendar-aware: extending from
// Jan 31 by one month lands on the normalized date time.AddDate yields,
// never on a fixed 30-day multiple.
type PlanDuration struct {
	Days   int `yaml:"days"`
	Months int `yaml:"months"`
	Years  int `yaml:"years"`
}

func (d PlanDuration) IsZero() bool { return d.Days == 0 && d.Months == 0 && d.Years == 0 }

// Extend computes the new expiry for an entitlement. Renewing before
// lapse stacks on the remaining time; renewing after lapse restarts
// from now with no retroactive credit.
func (d PlanDuration) Extend(current *time.Time, now time.Time) time.Time {
	base := now
	if current != nil && current.After(now) {
		base = *current
	}
	return base.AddDate(d.Years, d.Months, d.Days)
}

// Plan is a purchasable entitlement extension. Prices live server-side
// only; client-submitted amounts are never trusted.
type Plan struct {
	ID       string       `yaml:"id"`
	Title    string       `yaml:"title"`
	Price    int64        `yaml:"price"` // minor currency units
	Currency string       `yaml:"currency"`
	Duration PlanDuration `yaml:"duration"`
}

// NewPlan validates and constructs a plan.
func NewPlan(id, title string, price int64, currency string, duration PlanDuration) (*Plan, error) {
	if id == "" || title == "" || price <= 0 || duration.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = "ARS"
	}
	return &Plan{ID: id, Title: title, Price: price, Currency: currency, Duration: duration}, nil
}
