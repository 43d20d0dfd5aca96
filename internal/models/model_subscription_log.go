package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/renewal/pkg/types"
)

// SubscriptionLog records changes to the durable subscription record.
// Use case: troubleshooting and operator audits.
type SubscriptionLog struct {
	ID             string                         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SubscriptionID string                         `gorm:"column:subscription_id;type:uuid;not null;index" json:"subscription_id"`
	WalletAddress  string                         `gorm:"column:wallet_address;type:varchar(128);not null;index" json:"wallet_address"`
	Reason         types.SubscriptionChangeReason `gorm:"column:reason;type:varchar(64);not null" json:"reason"`
	// Before is nil for a newly created subscription.
	Before datatypes.JSONType[*Subscription] `gorm:"column:before;type:jsonb;default:'null'" json:"before"`
	After  datatypes.JSONType[*Subscription] `gorm:"column:after;type:jsonb;default:'null'" json:"after"`
	// Extra stores additional context such as trace id or committed plan change.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time         `json:"created_at"`
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
