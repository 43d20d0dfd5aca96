package changestate

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/fatflowers/renewal/pkg/types"
)

// ErrMalformed marks a stored value that cannot be decoded or violates its invariants.
var ErrMalformed = errors.New("malformed plan change state")

// PlanChangeRequest is the pending upgrade for one wallet. Times are epoch seconds.
type PlanChangeRequest struct {
	WalletAddress   string         `json:"wallet_address"`
	FromPlanType    types.PlanType `json:"from_plan_type"`
	ToPlanType      types.PlanType `json:"to_plan_type"`
	ToAmount        int64          `json:"to_amount"`
	ToPeriodSeconds int64          `json:"to_period_seconds"`
	EffectiveAt     int64          `json:"effective_at"`
	CreatedAt       int64          `json:"created_at"`

	Attempts        int    `json:"attempts"`
	LastAttemptAt   *int64 `json:"last_attempt_at,omitempty"`
	NextAttemptAt   *int64 `json:"next_attempt_at,omitempty"`
	Scheduled       bool   `json:"scheduled"`
	ScheduleRef     string `json:"schedule_ref,omitempty"`
	GiveUp          bool   `json:"give_up"`
	GiveUpAt        *int64 `json:"give_up_at,omitempty"`
	LastError       string `json:"last_error,omitempty"`
	AlertedAttempts []int  `json:"alerted_attempts,omitempty"`
}

// Overdue reports whether the effective instant has arrived.
func (r *PlanChangeRequest) Overdue(now time.Time) bool {
	return r.EffectiveAt <= now.Unix()
}

// Pending is true while the settlement side has neither confirmed nor been abandoned.
func (r *PlanChangeRequest) Pending() bool {
	return !r.Scheduled && !r.GiveUp
}

// BlocksBilling is true when charging under the old plan would be stale.
func (r *PlanChangeRequest) BlocksBilling(now time.Time) bool {
	return r.Pending() && r.Overdue(now)
}

// DueForAttempt is true when the executor should (re)try the schedule operation.
func (r *PlanChangeRequest) DueForAttempt(now time.Time) bool {
	return r.Pending() && r.NextAttemptAt != nil && *r.NextAttemptAt <= now.Unix()
}

// Committable is true when a successful payment at now should apply the change.
func (r *PlanChangeRequest) Committable(now time.Time) bool {
	return r.Scheduled && !r.GiveUp && r.Overdue(now)
}

func (r *PlanChangeRequest) HasAlerted(attempt int) bool {
	return slices.Contains(r.AlertedAttempts, attempt)
}

func (r *PlanChangeRequest) MarkAlerted(attempt int) {
	if !r.HasAlerted(attempt) {
		r.AlertedAttempts = append(r.AlertedAttempts, attempt)
	}
}

// Validate checks the invariants every stored request must hold.
func (r *PlanChangeRequest) Validate() error {
	switch {
	case r.WalletAddress == "":
		return fmt.Errorf("%w: empty wallet", ErrMalformed)
	case r.ToPlanType < r.FromPlanType:
		return fmt.Errorf("%w: to_plan_type %d below from_plan_type %d", ErrMalformed, r.ToPlanType, r.FromPlanType)
	case r.ToPeriodSeconds <= 0:
		return fmt.Errorf("%w: to_period_seconds %d", ErrMalformed, r.ToPeriodSeconds)
	case r.ToAmount < 0:
		return fmt.Errorf("%w: to_amount %d", ErrMalformed, r.ToAmount)
	case r.EffectiveAt <= 0:
		return fmt.Errorf("%w: effective_at %d", ErrMalformed, r.EffectiveAt)
	case r.Attempts < 0:
		return fmt.Errorf("%w: attempts %d", ErrMalformed, r.Attempts)
	}
	return nil
}

// CancelLock blocks cancellation while an upgrade is in flight.
type CancelLock struct {
	WalletAddress string                 `json:"wallet_address"`
	LockedUntil   int64                  `json:"locked_until"`
	Reason        types.CancelLockReason `json:"reason"`
	CreatedAt     int64                  `json:"created_at"`
}

// Blocks ignores LockedUntil; only explicit clearing releases the lock.
func (l *CancelLock) Blocks() bool {
	return l != nil && l.Reason == types.CancelLockReasonUpgradePending
}

// UnixPtr returns a pointer to t in epoch seconds.
func UnixPtr(t time.Time) *int64 {
	v := t.Unix()
	return &v
}
