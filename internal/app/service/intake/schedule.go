package intake

import (
	"context"
	"errors"

	"github.com/samber/lo"

	"github.com/fatflowers/renewal/internal/app/service/alert"
	"github.com/fatflowers/renewal/internal/app/service/changestate"
	"github.com/fatflowers/renewal/internal/app/service/planchange"
	"github.com/fatflowers/renewal/pkg/logctx"
)

// ReportScheduleOutcome applies an executor's schedule attempt result to the
// wallet's pending change. Repeating a report is safe.
func (s *Service) ReportScheduleOutcome(ctx context.Context, req *ScheduleOutcomeRequest) (*ScheduleOutcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	out := &ScheduleOutcome{}
	var pendingAlert *alert.Alert
	err := changestate.WithWalletLock(ctx, s.state, req.WalletAddress, func(ctx context.Context) error {
		log := logctx.FromCtx(ctx, s.log)
		now := s.now()

		change, err := s.state.GetPlanChange(ctx, req.WalletAddress)
		if errors.Is(err, changestate.ErrMalformed) {
			log.Warnw("plan_change_malformed_dropped", "err", err)
			out.Result = ScheduleResultDroppedMalformed
			return s.state.Clear(ctx, req.WalletAddress)
		}
		if err != nil {
			return err
		}

		switch {
		case change == nil:
			out.Result = ScheduleResultNoPending
			return nil
		case change.GiveUp:
			out.Result, out.Change = ScheduleResultAlreadyGivenUp, change
			return nil
		case change.Scheduled:
			out.Result, out.Change = ScheduleResultAlreadyScheduled, change
			return nil
		}

		if !req.failed() {
			ref := lo.FromPtr(req.TxRef)
			planchange.RecordSuccess(change, ref, now)
			if err := s.state.PutPlanChange(ctx, change); err != nil {
				return err
			}
			out.Result, out.Change = ScheduleResultScheduled, change
			log.Infow("plan_change_schedule_confirmed", "schedule_ref", ref, "attempts", change.Attempts)
			return nil
		}

		if req.Attempt != nil && *req.Attempt <= change.Attempts {
			out.Result, out.Change = ScheduleResultDuplicate, change
			return nil
		}

		res := s.policy.RecordFailure(change, *req.ErrorMessage, now)
		if res.GiveUp {
			if err := s.state.RecordGiveUp(ctx, change); err != nil {
				return err
			}
			out.Result = ScheduleResultGivenUp
			s.metrics.GiveUp()
			log.Errorw("plan_change_give_up", "attempts", change.Attempts, "last_error", change.LastError)
		} else {
			if err := s.state.PutPlanChange(ctx, change); err != nil {
				return err
			}
			out.Result = ScheduleResultRetry
			log.Warnw("plan_change_schedule_failed",
				"attempt", res.Attempt, "delay", res.Delay, "next_attempt_at", *change.NextAttemptAt, "err_msg", change.LastError)
		}
		out.Change = change

		if res.Alert {
			pendingAlert = alert.NewAlert(change.WalletAddress, res.Attempt, res.GiveUp, change.EffectiveAt, change.ToPlanType, change.LastError, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Alerts go out only after the state they describe is stored.
	if pendingAlert != nil {
		s.notifier.Notify(ctx, pendingAlert)
	}
	s.metrics.ScheduleReport(string(out.Result))
	return out, nil
}
