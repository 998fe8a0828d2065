package model

import "time"

type EntitlementStatus string

const (
	EntitlementStatusInactive EntitlementStatus = "inactive"
	EntitlementStatusActive   EntitlementStatus = "active"
)

// Entitlement is a user's paid-access window. The stored Status flag may
// lag reality: there is no background sweeper, so readers must decide
// access with IsActiveAt rather than trusting Status alone.
type Entitlement struct {
	UserID       string // opaque id from the external identity provider
	Status       EntitlementStatus
	ExpiresAt    *time.Time // nil until first extension
	TrialStarted bool
	DisplayName  string
	BusinessName string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewEntitlement bootstraps the record created the first time a user is
// observed.
func NewEntitlement(userID string, now time.Time) *Entitlement {
	return &Entitlement{
		UserID:    userID,
		Status:    EntitlementStatusInactive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActiveAt recomputes active-ness from the expiry instead of the
// stored flag. This recheck is the load-bearing correctness mechanism
// behind lazy expiration.
func (e *Entitlement) IsActiveAt(now time.Time) bool {
	if e == nil || e.ExpiresAt == nil {
		return false
	}
	return e.Status == EntitlementStatusActive && !now.After(*e.ExpiresAt)
}

// Lapsed reports whether the stored flag is stale: status still active
// but the expiry has passed.
func (e *Entitlement) Lapsed(now time.Time) bool {
	return e != nil && e.Status == EntitlementStatusActive && e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}
