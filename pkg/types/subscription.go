package types

// PlanType is the ordinal tier of a recurring plan. Higher is more expensive or longer.
type PlanType int

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonCreated             SubscriptionChangeReason = "created"
	SubscriptionChangeReasonRenewed             SubscriptionChangeReason = "renewed"
	SubscriptionChangeReasonPlanChangeCommitted SubscriptionChangeReason = "plan_change_committed"
	SubscriptionChangeReasonCancelled           SubscriptionChangeReason = "cancelled"
	SubscriptionChangeReasonPaymentSucceeded    SubscriptionChangeReason = "payment_succeeded"
	SubscriptionChangeReasonPaymentFailed       SubscriptionChangeReason = "payment_failed"
)

type CancelLockReason string

const (
	CancelLockReasonUpgradePending CancelLockReason = "upgrade_pending"
)

type AlertType string

const (
	AlertTypeScheduleRetry AlertType = "plan_change_schedule_retry"
	AlertTypeGiveUp        AlertType = "plan_change_give_up"
)
