package planchange

import (
	"time"

	"github.com/samber/lo"

	"github.com/fatflowers/renewal/internal/app/service/changestate"
	"github.com/fatflowers/renewal/pkg/config"
)

// BackoffPolicy computes retry timing for failed schedule attempts.
type BackoffPolicy struct {
	base        time.Duration
	max         time.Duration
	overdueMax  time.Duration
	min         time.Duration
	maxRetries  int
	alertPoints []int
}

func NewBackoffPolicy(cfg *config.Config) *BackoffPolicy {
	pc := cfg.PlanChange
	return &BackoffPolicy{
		base:        pc.BaseDelay,
		max:         pc.MaxDelay,
		overdueMax:  pc.OverdueMaxDelay,
		min:         pc.MinDelay,
		maxRetries:  pc.MaxRetries,
		alertPoints: pc.AlertAttempts,
	}
}

// Delay returns base*2^(attempts-1), capped by the normal or overdue ceiling and
// floored at the minimum delay. attempts is the 1-based attempt just completed.
func (p *BackoffPolicy) Delay(attempts int, overdue bool) time.Duration {
	ceiling := p.max
	if overdue {
		ceiling = p.overdueMax
	}
	d := p.base
	for i := 1; i < attempts && d < ceiling; i++ {
		d *= 2
	}
	if d > ceiling {
		d = ceiling
	}
	if d < p.min {
		d = p.min
	}
	return d
}

// Exhausted reports whether attempts has reached the retry budget.
func (p *BackoffPolicy) Exhausted(attempts int) bool {
	return attempts >= p.maxRetries
}

// ShouldAlert reports whether attempt is an alerting point. Give-up always alerts.
func (p *BackoffPolicy) ShouldAlert(attempt int, giveUp bool) bool {
	return giveUp || lo.Contains(p.alertPoints, attempt)
}

// FailureOutcome describes the transition applied by RecordFailure.
type FailureOutcome struct {
	Attempt int
	GiveUp  bool
	Delay   time.Duration
	// Alert is true when this attempt has not been alerted before and should be.
	Alert bool
}

// RecordFailure applies a failed schedule attempt to req.
func (p *BackoffPolicy) RecordFailure(req *changestate.PlanChangeRequest, errMsg string, now time.Time) FailureOutcome {
	req.Attempts++
	req.LastAttemptAt = changestate.UnixPtr(now)
	req.LastError = errMsg

	out := FailureOutcome{Attempt: req.Attempts}
	if p.Exhausted(req.Attempts) {
		req.GiveUp = true
		req.GiveUpAt = changestate.UnixPtr(now)
		req.NextAttemptAt = nil
		out.GiveUp = true
	} else {
		out.Delay = p.Delay(req.Attempts, req.Overdue(now))
		req.NextAttemptAt = changestate.UnixPtr(now.Add(out.Delay))
	}

	if p.ShouldAlert(req.Attempts, out.GiveUp) && !req.HasAlerted(req.Attempts) {
		req.MarkAlerted(req.Attempts)
		out.Alert = true
	}
	return out
}

// RecordSuccess marks req as confirmed on the settlement side. Attempts are kept.
func RecordSuccess(req *changestate.PlanChangeRequest, scheduleRef string, now time.Time) {
	req.Scheduled = true
	req.ScheduleRef = scheduleRef
	req.LastError = ""
	req.LastAttemptAt = changestate.UnixPtr(now)
	req.NextAttemptAt = nil
}
