package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/renewal/pkg/types"
)

type AlertLogStatus string

const (
	AlertLogStatusRecorded     AlertLogStatus = "recorded"
	AlertLogStatusDelivered    AlertLogStatus = "delivered"
	AlertLogStatusDeliverError AlertLogStatus = "deliver_failed"
)

// AlertLog is the audit entry written for every plan change alert, whether or
// not a webhook is configured.
type AlertLog struct {
	ID            string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Type          types.AlertType `gorm:"column:type;type:varchar(64);not null" json:"type"`
	WalletAddress string          `gorm:"column:wallet_address;type:varchar(128);not null;index" json:"wallet_address"`
	Attempt       int             `gorm:"column:attempt;not null" json:"attempt"`
	GiveUp        bool            `gorm:"column:give_up;not null" json:"give_up"`
	TraceID       string          `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	Payload       datatypes.JSON  `gorm:"column:payload;type:jsonb" json:"payload"`
	Status        AlertLogStatus  `gorm:"column:status;type:varchar(64);not null" json:"status"`
	DeliveryError *string         `gorm:"column:delivery_error;type:text" json:"delivery_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (AlertLog) TableName() string { return "alert_log" }
