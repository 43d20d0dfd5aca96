package intake

import (
	"github.com/fatflowers/renewal/internal/app/service/changestate"
	models "github.com/fatflowers/renewal/internal/models"
	types "github.com/fatflowers/renewal/pkg/types"
)

// ScheduleOutcomeRequest reports one settlement-side schedule attempt.
// A missing or empty ErrorMessage means success.
type ScheduleOutcomeRequest struct {
	WalletAddress string  `json:"wallet_address" binding:"required"`
	TxRef         *string `json:"tx_ref,omitempty"`
	ErrorMessage  *string `json:"error_message,omitempty"`
	// Attempt optionally numbers the report; a number already counted is ignored.
	Attempt *int `json:"attempt,omitempty"`
}

func (r *ScheduleOutcomeRequest) Validate() error {
	if r.WalletAddress == "" {
		return types.InvalidArgument("wallet_address is required")
	}
	if r.Attempt != nil && *r.Attempt <= 0 {
		return types.InvalidArgument("attempt must be positive")
	}
	return nil
}

func (r *ScheduleOutcomeRequest) failed() bool {
	return r.ErrorMessage != nil && *r.ErrorMessage != ""
}

type ScheduleResult string

const (
	ScheduleResultNoPending        ScheduleResult = "no_pending"
	ScheduleResultDroppedMalformed ScheduleResult = "dropped_malformed"
	ScheduleResultAlreadyScheduled ScheduleResult = "already_scheduled"
	ScheduleResultAlreadyGivenUp   ScheduleResult = "already_given_up"
	ScheduleResultDuplicate        ScheduleResult = "duplicate"
	ScheduleResultScheduled        ScheduleResult = "scheduled"
	ScheduleResultRetry            ScheduleResult = "retry"
	ScheduleResultGivenUp          ScheduleResult = "given_up"
)

type ScheduleOutcome struct {
	Result ScheduleResult                 `json:"result"`
	Change *changestate.PlanChangeRequest `json:"change,omitempty"`
}

// PaymentOutcomeRequest reports one recurring charge.
type PaymentOutcomeRequest struct {
	SubscriptionID string  `json:"subscription_id" binding:"required"`
	Success        bool    `json:"success"`
	TxRef          *string `json:"tx_ref,omitempty"`
	ErrorMessage   *string `json:"error_message,omitempty"`
	// PeriodStart is the next_payment_at the executor read from the feed; it
	// names the billing period the charge settles. Required on success.
	PeriodStart *int64 `json:"period_start,omitempty"`
}

func (r *PaymentOutcomeRequest) Validate() error {
	if r.SubscriptionID == "" {
		return types.InvalidArgument("subscription_id is required")
	}
	if r.Success && r.PeriodStart == nil {
		return types.InvalidArgument("period_start is required for a successful payment")
	}
	return nil
}

// staleFor reports whether the request names a period other than the open one.
func (r *PaymentOutcomeRequest) staleFor(sub *models.Subscription) bool {
	return r.PeriodStart != nil && *r.PeriodStart != sub.NextPaymentAt
}

type PaymentResult string

const (
	PaymentResultCharged         PaymentResult = "charged"
	PaymentResultCommitted       PaymentResult = "committed"
	PaymentResultDuplicate       PaymentResult = "duplicate"
	PaymentResultDeactivated     PaymentResult = "deactivated"
	PaymentResultIgnoredInactive PaymentResult = "ignored_inactive"
)

type PaymentOutcome struct {
	Result          PaymentResult                  `json:"result"`
	Subscription    *models.Subscription           `json:"subscription"`
	CommittedChange *changestate.PlanChangeRequest `json:"committed_change,omitempty"`
}
