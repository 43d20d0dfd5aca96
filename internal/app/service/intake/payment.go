package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/renewal/internal/app/service/changestate"
	"github.com/fatflowers/renewal/internal/app/service/paymentlog"
	"github.com/fatflowers/renewal/internal/app/service/subscription"
	models "github.com/fatflowers/renewal/internal/models"
	"github.com/fatflowers/renewal/pkg/logctx"
	types "github.com/fatflowers/renewal/pkg/types"
)

// ReportPaymentOutcome records a recurring charge. On success it commits a
// confirmed plan change that has become effective and advances the billing
// instant; on failure it deactivates the subscription. Repeating a report is safe.
func (s *Service) ReportPaymentOutcome(ctx context.Context, req *PaymentOutcomeRequest) (*PaymentOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	sub, err := subscription.FindByID(ctx, s.db, req.SubscriptionID)
	if err != nil {
		return nil, err
	}

	out := &PaymentOutcome{}
	err = changestate.WithWalletLock(ctx, s.state, sub.WalletAddress, func(ctx context.Context) error {
		log := logctx.FromCtx(ctx, s.log)
		now := s.now()

		var change *changestate.PlanChangeRequest
		dropChange := false
		if req.Success {
			c, err := s.state.GetPlanChange(ctx, sub.WalletAddress)
			switch {
			case errors.Is(err, changestate.ErrMalformed):
				log.Warnw("plan_change_malformed_dropped", "err", err)
				dropChange = true
			case err != nil:
				return err
			default:
				change = c
			}
		}

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, err := subscription.FindByIDForUpdate(ctx, tx, req.SubscriptionID)
			if err != nil {
				return err
			}
			out.Subscription = current
			if !current.IsActive {
				out.Result = PaymentResultIgnoredInactive
				return nil
			}
			if !req.Success {
				if req.staleFor(current) {
					out.Result = PaymentResultDuplicate
					return nil
				}
				out.Result = PaymentResultDeactivated
				return s.applyFailure(ctx, tx, current, req)
			}

			dup, err := s.settled(ctx, tx, current, req)
			if err != nil {
				return err
			}
			if dup {
				out.Result = PaymentResultDuplicate
				if change != nil && change.Committable(now) && alreadyApplied(current, change) {
					dropChange = true
				}
				return nil
			}

			committed, err := s.applySuccess(ctx, tx, current, change, req, now)
			if err != nil {
				return err
			}
			if committed {
				out.Result, out.CommittedChange = PaymentResultCommitted, change
				dropChange = true
			} else {
				out.Result = PaymentResultCharged
			}
			return nil
		})
		if err != nil {
			return err
		}

		if out.Result == PaymentResultDeactivated {
			dropChange = true
		}
		if dropChange {
			// A failed clear is returned so the executor retries; the retry is a
			// duplicate that clears the leftover state.
			if err := s.state.Clear(ctx, sub.WalletAddress); err != nil {
				log.Errorw("plan_change_clear_failed", "err", err)
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentReport(string(out.Result))
	if out.Result == PaymentResultCommitted {
		s.metrics.Commit()
	}
	logctx.FromCtx(ctx, s.log).Infow("payment_outcome_reported",
		"subscription_id", req.SubscriptionID, "result", out.Result, "next_payment_at", out.Subscription.NextPaymentAt)
	return out, nil
}

// settled reports whether the period req names was already paid, or is not
// the period currently open for current.
func (s *Service) settled(ctx context.Context, tx *gorm.DB, current *models.Subscription, req *PaymentOutcomeRequest) (bool, error) {
	if req.staleFor(current) {
		return true, nil
	}
	paid, err := paymentlog.HasSuccessfulPeriod(ctx, tx, current.ID, current.NextPaymentAt)
	if err != nil || paid {
		return paid, err
	}
	return paymentlog.HasSuccessfulTxRef(ctx, tx, current.ID, lo.FromPtr(req.TxRef))
}

// applySuccess charges current, committing change first when it is effective
// for the period being settled. A charge settled before the period opens is
// applied the same way and flagged early.
func (s *Service) applySuccess(ctx context.Context, tx *gorm.DB, current *models.Subscription, change *changestate.PlanChangeRequest, req *PaymentOutcomeRequest, now time.Time) (bool, error) {
	before := current.Snapshot()
	reason := types.SubscriptionChangeReasonPaymentSucceeded
	extra := map[string]any{"tx_ref": lo.FromPtr(req.TxRef)}

	early := !current.IsDue(now)
	at := now
	if early {
		at = time.Unix(current.NextPaymentAt, 0)
	}
	committed := change != nil && change.Committable(at)
	if committed {
		current.PlanType = change.ToPlanType
		current.AmountDue = change.ToAmount
		current.PeriodSeconds = change.ToPeriodSeconds
		reason = types.SubscriptionChangeReasonPlanChangeCommitted
		extra["plan_change"] = change
	}

	periodStart := current.NextPaymentAt
	current.NextPaymentAt += current.PeriodSeconds
	if err := tx.Save(current).Error; err != nil {
		return false, fmt.Errorf("failed to save subscription: %w", err)
	}

	entry := &models.PaymentLog{
		SubscriptionID: current.ID,
		WalletAddress:  current.WalletAddress,
		Success:        true,
		TxRef:          req.TxRef,
		PlanType:       current.PlanType,
		AmountDue:      current.AmountDue,
		PeriodStart:    periodStart,
	}
	if early {
		entry.Extra = datatypes.JSONMap{"early": true, "reported_at": now.Unix()}
		extra["early"] = true
	}
	if err := paymentlog.Append(ctx, tx, entry); err != nil {
		return false, err
	}
	if err := subscription.RecordChange(ctx, tx, reason, before, current, extra); err != nil {
		return false, err
	}
	return committed, nil
}

// applyFailure deactivates current. Payments are never retried here.
func (s *Service) applyFailure(ctx context.Context, tx *gorm.DB, current *models.Subscription, req *PaymentOutcomeRequest) error {
	before := current.Snapshot()
	current.IsActive = false
	if err := tx.Save(current).Error; err != nil {
		return fmt.Errorf("failed to deactivate subscription: %w", err)
	}

	entry := &models.PaymentLog{
		SubscriptionID: current.ID,
		WalletAddress:  current.WalletAddress,
		Success:        false,
		TxRef:          req.TxRef,
		ErrorMessage:   req.ErrorMessage,
		PlanType:       current.PlanType,
		AmountDue:      current.AmountDue,
		PeriodStart:    current.NextPaymentAt,
	}
	if err := paymentlog.Append(ctx, tx, entry); err != nil {
		return err
	}
	extra := map[string]any{"error_message": lo.FromPtr(req.ErrorMessage)}
	if err := subscription.RecordChange(ctx, tx, types.SubscriptionChangeReasonPaymentFailed, before, current, extra); err != nil {
		return err
	}
	logctx.FromCtx(ctx, s.log).Warnw("subscription_deactivated", "subscription_id", current.ID, "err_msg", lo.FromPtr(req.ErrorMessage))
	return nil
}

// alreadyApplied reports whether sub already carries change's target terms.
func alreadyApplied(sub *models.Subscription, change *changestate.PlanChangeRequest) bool {
	return sub.PlanType == change.ToPlanType &&
		sub.AmountDue == change.ToAmount &&
		sub.PeriodSeconds == change.ToPeriodSeconds
}
