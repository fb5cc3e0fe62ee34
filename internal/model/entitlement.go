package model

import (
	"time"
)

type Plan string

const (
	PlanFree Plan = "FREE"
	PlanPro  Plan = "PRO"
)

type EntitlementStatus string

const (
	StatusActive   EntitlementStatus = "ACTIVE"
	StatusInactive EntitlementStatus = "INACTIVE"
)

// Entitlement is the per-user plan and daily usage record. UsageCount only
// counts for the day named by UsageDay; any other day means zero.
type Entitlement struct {
	ID          int64             `gorm:"primaryKey" json:"id"`
	UserID      int64             `gorm:"uniqueIndex;not null" json:"userId"`
	Plan        Plan              `gorm:"size:10;not null;default:FREE" json:"plan"`
	Status      EntitlementStatus `gorm:"size:10;not null;default:ACTIVE" json:"status"`
	UsageCount  int               `gorm:"not null;default:0" json:"usageCount"`
	UsageDay    string            `gorm:"size:10" json:"usageDay,omitempty"` // YYYY-MM-DD, server local
	LastUsageAt *time.Time        `json:"lastUsageAt,omitempty"`
	PeriodEnd   *time.Time        `json:"periodEnd,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

func (Entitlement) TableName() string {
	return "entitlements"
}
