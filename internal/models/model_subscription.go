package models

import (
	"time"

	"github.com/fatflowers/renewal/pkg/types"
)

// Subscription is the durable record of a subscriber's recurring plan.
// At most one row per wallet has IsActive=true (enforced by a partial unique index).
type Subscription struct {
	ID            string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	WalletAddress string         `gorm:"column:wallet_address;type:varchar(128);not null;index:idx_subscription_wallet;uniqueIndex:idx_subscription_wallet_active,where:is_active = true" json:"wallet_address"`
	PlanType      types.PlanType `gorm:"column:plan_type;not null" json:"plan_type"`
	// AmountDue is in minor currency units.
	AmountDue     int64 `gorm:"column:amount_due;type:bigint;not null" json:"amount_due"`
	PeriodSeconds int64 `gorm:"column:period_seconds;type:bigint;not null" json:"period_seconds"`
	// NextPaymentAt is epoch seconds.
	NextPaymentAt     int64     `gorm:"column:next_payment_at;type:bigint;not null;index:idx_subscription_due,priority:2" json:"next_payment_at"`
	IsActive          bool      `gorm:"column:is_active;not null;index:idx_subscription_due,priority:1" json:"is_active"`
	PaymentAccountRef string    `gorm:"column:payment_account_ref;type:varchar(256)" json:"payment_account_ref"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// IsDue reports whether the subscription should be charged at now.
func (s *Subscription) IsDue(now time.Time) bool {
	return s != nil && s.IsActive && s.NextPaymentAt <= now.Unix()
}

// Snapshot returns a copy safe to store as a before/after image.
func (s *Subscription) Snapshot() *Subscription {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
