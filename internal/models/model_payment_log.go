package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/renewal/pkg/types"
)

// PaymentLog is the append-only record of settlement outcomes reported by the executor.
// Rows are never updated after insert.
type PaymentLog struct {
	ID             string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SubscriptionID string         `gorm:"column:subscription_id;type:uuid;not null;index:idx_payment_log_sub_tx,priority:1;uniqueIndex:idx_payment_log_settled,priority:1,where:success = true" json:"subscription_id"`
	WalletAddress  string         `gorm:"column:wallet_address;type:varchar(128);not null;index" json:"wallet_address"`
	Success        bool           `gorm:"column:success;not null" json:"success"`
	TxRef          *string        `gorm:"column:tx_ref;type:varchar(256);index:idx_payment_log_sub_tx,priority:2" json:"tx_ref,omitempty"`
	ErrorMessage   *string        `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	PlanType       types.PlanType `gorm:"column:plan_type;not null" json:"plan_type"`
	AmountDue      int64          `gorm:"column:amount_due;type:bigint;not null" json:"amount_due"`
	// PeriodStart is the next_payment_at the report settled (epoch seconds).
	// At most one successful row exists per subscription and period.
	PeriodStart int64             `gorm:"column:period_start;type:bigint;not null;uniqueIndex:idx_payment_log_settled,priority:2,where:success = true" json:"period_start"`
	Extra       datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt   time.Time         `gorm:"index" json:"created_at"`
}

func (PaymentLog) TableName() string { return "payment_log" }
