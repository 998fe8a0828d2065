package model

import "time"

// RedemptionCode is a single-use, human-shareable code granting a fixed
// entitlement extension. The only permitted mutation is the one-way
// transition IsUsed false -> true.
type RedemptionCode struct {
	Code         string
	Duration     PlanDuration
	IsUsed       bool
	UsedByUserID *string    // Pointer to allow for NULL
	UsedAt       *time.Time // Pointer to allow for NULL
	CreatedAt    time.Time
}
