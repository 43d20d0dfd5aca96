package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/renewal/internal/app/service/changestate"
	models "github.com/fatflowers/renewal/internal/models"
	"github.com/fatflowers/renewal/pkg/config"
	"github.com/fatflowers/renewal/pkg/logctx"
	"github.com/fatflowers/renewal/pkg/tool"
	types "github.com/fatflowers/renewal/pkg/types"
)

// Service is the registry of durable subscriptions.
type Service struct {
	cfg   *config.Config
	db    *gorm.DB
	state changestate.Store
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewService(cfg *config.Config, db *gorm.DB, state changestate.Store, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, db: db, state: state, log: log, now: time.Now}
}

// SetClock replaces the time source; used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

type CreateOrUpdateRequest struct {
	WalletAddress     string         `json:"wallet_address" binding:"required"`
	PlanType          types.PlanType `json:"plan_type"`
	AmountDue         int64          `json:"amount_due"`
	PeriodSeconds     int64          `json:"period_seconds"`
	PaymentAccountRef string         `json:"payment_account_ref"`
}

func (r *CreateOrUpdateRequest) Validate() error {
	switch {
	case r.WalletAddress == "":
		return types.InvalidArgument("wallet_address is required")
	case r.PlanType < 0:
		return types.InvalidArgument("plan_type must not be negative")
	case r.AmountDue < 0:
		return types.InvalidArgument("amount_due must not be negative")
	case r.PeriodSeconds <= 0:
		return types.InvalidArgument("period_seconds must be positive")
	}
	return nil
}

// Status is the client view of a wallet's subscription.
type Status struct {
	Subscription      *models.Subscription           `json:"subscription"`
	PendingChange     *changestate.PlanChangeRequest `json:"pending_change"`
	CancelLockedUntil *int64                         `json:"cancel_locked_until"`
}

// CreateOrUpdate inserts the wallet's subscription or overwrites the plan of the
// active one. Any pending plan change for the wallet is discarded.
func (s *Service) CreateOrUpdate(ctx context.Context, req *CreateOrUpdateRequest) (*models.Subscription, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var result *models.Subscription
	err := changestate.WithWalletLock(ctx, s.state, req.WalletAddress, func(ctx context.Context) error {
		now := s.now()
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := FindActiveForUpdate(ctx, tx, req.WalletAddress)
			if err != nil {
				return err
			}

			reason := types.SubscriptionChangeReasonRenewed
			var before *models.Subscription
			if current == nil {
				reason = types.SubscriptionChangeReasonCreated
				current = &models.Subscription{
					ID:            tool.GenerateUUIDV7(),
					WalletAddress: req.WalletAddress,
					IsActive:      true,
				}
			} else {
				if req.PlanType < current.PlanType {
					return fmt.Errorf("%w: plan %d below current %d", types.ErrDowngradeNotAllowed, req.PlanType, current.PlanType)
				}
				before = current.Snapshot()
			}

			current.PlanType = req.PlanType
			current.AmountDue = req.AmountDue
			current.PeriodSeconds = req.PeriodSeconds
			current.PaymentAccountRef = req.PaymentAccountRef
			current.NextPaymentAt = now.Unix() + req.PeriodSeconds

			if err := tx.Save(current).Error; err != nil {
				return fmt.Errorf("failed to save subscription: %w", err)
			}
			if err := RecordChange(ctx, tx, reason, before, current, nil); err != nil {
				return err
			}
			result = current
			return nil
		})
		if err != nil {
			return err
		}

		logctx.FromCtx(ctx, s.log).Infow("subscription_upserted",
			"subscription_id", result.ID, "plan_type", result.PlanType, "next_payment_at", result.NextPaymentAt)

		if err := s.state.Clear(ctx, req.WalletAddress); err != nil {
			logctx.FromCtx(ctx, s.log).Errorw("plan_change_clear_failed", "err", err)
			return fmt.Errorf("subscription saved but pending change not cleared: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel deactivates the wallet's subscription unless an upgrade holds the cancel lock.
func (s *Service) Cancel(ctx context.Context, wallet string) (*models.Subscription, error) {
	if wallet == "" {
		return nil, types.InvalidArgument("wallet_address is required")
	}

	var result *models.Subscription
	err := changestate.WithWalletLock(ctx, s.state, wallet, func(ctx context.Context) error {
		lock, err := s.state.GetCancelLock(ctx, wallet)
		if err != nil {
			return err
		}
		if lock.Blocks() {
			logctx.FromCtx(ctx, s.log).Infow("cancel_rejected", "locked_until", lock.LockedUntil, "reason", lock.Reason)
			return &types.CancelLockedError{LockedUntil: lock.LockedUntil, Reason: lock.Reason}
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := FindActiveForUpdate(ctx, tx, wallet)
			if err != nil {
				return err
			}
			if current == nil {
				return types.ErrNoActiveSubscription
			}
			before := current.Snapshot()
			current.IsActive = false
			if err := tx.Save(current).Error; err != nil {
				return fmt.Errorf("failed to cancel subscription: %w", err)
			}
			if err := RecordChange(ctx, tx, types.SubscriptionChangeReasonCancelled, before, current, nil); err != nil {
				return err
			}
			result = current
			return nil
		})
		if err != nil {
			return err
		}

		logctx.FromCtx(ctx, s.log).Infow("subscription_cancelled", "subscription_id", result.ID)
		if err := s.state.Clear(ctx, wallet); err != nil {
			// Leftover state only concerns an inactive row; the feed ignores it.
			logctx.FromCtx(ctx, s.log).Warnw("plan_change_clear_failed", "err", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetStatus returns the active subscription, pending change and cancel-lock horizon.
func (s *Service) GetStatus(ctx context.Context, wallet string) (*Status, error) {
	if wallet == "" {
		return nil, types.InvalidArgument("wallet_address is required")
	}
	sub, err := s.GetActive(ctx, wallet)
	if err != nil {
		return nil, err
	}

	status := &Status{Subscription: sub}
	change, err := s.state.GetPlanChange(ctx, wallet)
	switch {
	case errors.Is(err, changestate.ErrMalformed):
		logctx.FromCtx(ctx, s.log).Warnw("plan_change_malformed", "wallet_address", wallet, "err", err)
	case err != nil:
		return nil, err
	default:
		status.PendingChange = change
	}

	lock, err := s.state.GetCancelLock(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if lock.Blocks() {
		until := lock.LockedUntil
		status.CancelLockedUntil = &until
	}
	return status, nil
}

// GetActive returns the active subscription for wallet, or nil when none exists.
func (s *Service) GetActive(ctx context.Context, wallet string) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Where("wallet_address = ? AND is_active = ?", wallet, true).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	return &sub, nil
}
