package planchange

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/renewal/internal/app/service/changestate"
	"github.com/fatflowers/renewal/internal/app/service/subscription"
	"github.com/fatflowers/renewal/internal/testutil"
	types "github.com/fatflowers/renewal/pkg/types"
)

const month = int64(2_592_000)

func newScheduler(t *testing.T) (*Service, *subscription.Service, changestate.Store, *testutil.Clock) {
	t.Helper()
	cfg := testutil.Config()
	client, _ := testutil.NewRedis(t)
	log := zap.NewNop().Sugar()
	state := changestate.NewRedisStore(client, cfg, log)
	subs := subscription.NewService(cfg, testutil.NewDB(t), state, log)
	svc := NewService(subs, state, NewBackoffPolicy(cfg), log)
	clock := testutil.NewClock(time.Unix(1_700_000_000, 0))
	subs.SetClock(clock.Now)
	svc.SetClock(clock.Now)
	return svc, subs, state, clock
}

func TestScheduleChange_RequiresActiveSubscription(t *testing.T) {
	svc, _, _, _ := newScheduler(t)
	_, err := svc.ScheduleChange(context.Background(), &ScheduleChangeRequest{WalletAddress: "w1", ToPlanType: 2, ToPeriodSeconds: month})
	assert.ErrorIs(t, err, types.ErrNoActiveSubscription)
}

func TestScheduleChange_RejectsDowngrade(t *testing.T) {
	ctx := context.Background()
	svc, subs, state, _ := newScheduler(t)
	_, err := subs.CreateOrUpdate(ctx, &subscription.CreateOrUpdateRequest{WalletAddress: "w1", PlanType: 3, AmountDue: 1, PeriodSeconds: month})
	require.NoError(t, err)

	for _, to := range []types.PlanType{0, 1, 2} {
		effectiveAt := int64(1)
		_, err = svc.ScheduleChange(ctx, &ScheduleChangeRequest{
			WalletAddress: "w1", ToPlanType: to, ToAmount: 99, ToPeriodSeconds: month, EffectiveAt: &effectiveAt,
		})
		assert.ErrorIs(t, err, types.ErrDowngradeNotAllowed)
	}
	change, err := state.GetPlanChange(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, change)
}

func TestScheduleChange_DefaultsAndLock(t *testing.T) {
	ctx := context.Background()
	svc, subs, state, clock := newScheduler(t)
	sub, err := subs.CreateOrUpdate(ctx, &subscription.CreateOrUpdateRequest{WalletAddress: "w1", PlanType: 1, AmountDue: 1000, PeriodSeconds: month})
	require.NoError(t, err)

	change, err := svc.ScheduleChange(ctx, &ScheduleChangeRequest{WalletAddress: "w1", ToPlanType: 2, ToAmount: 2500, ToPeriodSeconds: month})
	require.NoError(t, err)
	assert.Equal(t, sub.NextPaymentAt, change.EffectiveAt)
	assert.Equal(t, types.PlanType(1), change.FromPlanType)
	assert.Zero(t, change.Attempts)
	require.NotNil(t, change.NextAttemptAt)
	assert.Equal(t, clock.Now().Unix(), *change.NextAttemptAt)
	assert.True(t, change.DueForAttempt(clock.Now()))

	lock, err := state.GetCancelLock(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, lock.Blocks())
	assert.Equal(t, sub.NextPaymentAt, lock.LockedUntil)

	_, err = subs.Cancel(ctx, "w1")
	assert.ErrorIs(t, err, types.ErrCancelLocked)
}

func TestScheduleChange_ReplacesGivenUpRequest(t *testing.T) {
	ctx := context.Background()
	svc, subs, state, _ := newScheduler(t)
	_, err := subs.CreateOrUpdate(ctx, &subscription.CreateOrUpdateRequest{WalletAddress: "w1", PlanType: 1, AmountDue: 1, PeriodSeconds: month})
	require.NoError(t, err)

	first, err := svc.ScheduleChange(ctx, &ScheduleChangeRequest{WalletAddress: "w1", ToPlanType: 2, ToPeriodSeconds: month})
	require.NoError(t, err)
	first.Attempts = 10
	first.GiveUp = true
	first.NextAttemptAt = nil
	require.NoError(t, state.RecordGiveUp(ctx, first))

	effectiveAt := first.EffectiveAt + 100
	second, err := svc.ScheduleChange(ctx, &ScheduleChangeRequest{WalletAddress: "w1", ToPlanType: 3, ToPeriodSeconds: month, EffectiveAt: &effectiveAt})
	require.NoError(t, err)

	stored, err := state.GetPlanChange(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, second, stored)
	assert.False(t, stored.GiveUp)
	assert.Zero(t, stored.Attempts)

	lock, err := state.GetCancelLock(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, effectiveAt, lock.LockedUntil)
}

func TestScheduleChange_RejectsPastEffectiveAt(t *testing.T) {
	ctx := context.Background()
	svc, subs, state, clock := newScheduler(t)
	sub, err := subs.CreateOrUpdate(ctx, &subscription.CreateOrUpdateRequest{WalletAddress: "w1", PlanType: 1, AmountDue: 1, PeriodSeconds: month})
	require.NoError(t, err)

	past := clock.Now().Unix() - 1
	_, err = svc.ScheduleChange(ctx, &ScheduleChangeRequest{
		WalletAddress: "w1", ToPlanType: 2, ToAmount: 9, ToPeriodSeconds: month, EffectiveAt: &past,
	})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	change, err := state.GetPlanChange(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, change)
	lock, err := state.GetCancelLock(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, lock)

	now := clock.Now().Unix()
	change, err = svc.ScheduleChange(ctx, &ScheduleChangeRequest{
		WalletAddress: "w1", ToPlanType: 2, ToAmount: 9, ToPeriodSeconds: month, EffectiveAt: &now,
	})
	require.NoError(t, err)
	assert.Equal(t, now, change.EffectiveAt)

	// An overdue subscription still defaults to its pending renewal.
	clock.Set(time.Unix(sub.NextPaymentAt+3600, 0))
	change, err = svc.ScheduleChange(ctx, &ScheduleChangeRequest{WalletAddress: "w1", ToPlanType: 3, ToAmount: 19, ToPeriodSeconds: month})
	require.NoError(t, err)
	assert.Equal(t, sub.NextPaymentAt, change.EffectiveAt)
}

func TestScheduleChange_Validation(t *testing.T) {
	svc, _, _, _ := newScheduler(t)
	bad := int64(-1)
	for _, req := range []*ScheduleChangeRequest{
		{ToPlanType: 2, ToPeriodSeconds: month},
		{WalletAddress: "w", ToPlanType: 2, ToPeriodSeconds: 0},
		{WalletAddress: "w", ToPlanType: 2, ToAmount: -1, ToPeriodSeconds: month},
		{WalletAddress: "w", ToPlanType: 2, ToPeriodSeconds: month, EffectiveAt: &bad},
	} {
		_, err := svc.ScheduleChange(context.Background(), req)
		assert.ErrorIs(t, err, types.ErrInvalidArgument)
	}
}
