package planchange

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/renewal/internal/app/service/changestate"
	"github.com/fatflowers/renewal/internal/app/service/subscription"
	"github.com/fatflowers/renewal/pkg/logctx"
	types "github.com/fatflowers/renewal/pkg/types"
)

type ScheduleChangeRequest struct {
	WalletAddress   string         `json:"wallet_address" binding:"required"`
	ToPlanType      types.PlanType `json:"to_plan_type"`
	ToAmount        int64          `json:"to_amount"`
	ToPeriodSeconds int64          `json:"to_period_seconds"`
	// EffectiveAt defaults to the subscription's next payment instant.
	EffectiveAt *int64 `json:"effective_at,omitempty"`
}

func (r *ScheduleChangeRequest) Validate() error {
	switch {
	case r.WalletAddress == "":
		return types.InvalidArgument("wallet_address is required")
	case r.ToAmount < 0:
		return types.InvalidArgument("to_amount must not be negative")
	case r.ToPeriodSeconds <= 0:
		return types.InvalidArgument("to_period_seconds must be positive")
	case r.EffectiveAt != nil && *r.EffectiveAt <= 0:
		return types.InvalidArgument("effective_at must be positive")
	}
	return nil
}

// Service records deferred upgrades and owns their retry policy.
type Service struct {
	subs   *subscription.Service
	state  changestate.Store
	policy *BackoffPolicy
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewService(subs *subscription.Service, state changestate.Store, policy *BackoffPolicy, log *zap.SugaredLogger) *Service {
	return &Service{subs: subs, state: state, policy: policy, log: log, now: time.Now}
}

// SetClock replaces the time source; used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ScheduleChange records a pending upgrade and locks cancellation until it resolves.
// A previous request for the wallet, including a given-up one, is replaced.
func (s *Service) ScheduleChange(ctx context.Context, req *ScheduleChangeRequest) (*changestate.PlanChangeRequest, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var change *changestate.PlanChangeRequest
	err := changestate.WithWalletLock(ctx, s.state, req.WalletAddress, func(ctx context.Context) error {
		sub, err := s.subs.GetActive(ctx, req.WalletAddress)
		if err != nil {
			return err
		}
		if sub == nil {
			return types.ErrNoActiveSubscription
		}
		if req.ToPlanType < sub.PlanType {
			return fmt.Errorf("%w: plan %d below current %d", types.ErrDowngradeNotAllowed, req.ToPlanType, sub.PlanType)
		}

		now := s.now()
		effectiveAt := sub.NextPaymentAt
		if req.EffectiveAt != nil {
			effectiveAt = *req.EffectiveAt
			if effectiveAt < now.Unix() {
				return types.InvalidArgument("effective_at %d is before now %d", effectiveAt, now.Unix())
			}
		}

		change = &changestate.PlanChangeRequest{
			WalletAddress:   req.WalletAddress,
			FromPlanType:    sub.PlanType,
			ToPlanType:      req.ToPlanType,
			ToAmount:        req.ToAmount,
			ToPeriodSeconds: req.ToPeriodSeconds,
			EffectiveAt:     effectiveAt,
			CreatedAt:       now.Unix(),
			NextAttemptAt:   changestate.UnixPtr(now),
		}
		if err := change.Validate(); err != nil {
			return types.InvalidArgument("%v", err)
		}
		lock := &changestate.CancelLock{
			WalletAddress: req.WalletAddress,
			LockedUntil:   effectiveAt,
			Reason:        types.CancelLockReasonUpgradePending,
			CreatedAt:     now.Unix(),
		}
		if err := s.state.PutPending(ctx, change, lock); err != nil {
			return err
		}

		logctx.FromCtx(ctx, s.log).Infow("plan_change_scheduled",
			"from_plan_type", change.FromPlanType, "to_plan_type", change.ToPlanType, "effective_at", effectiveAt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}
