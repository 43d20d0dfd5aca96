package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/renewal/internal/app/service/changestate"
	models "github.com/fatflowers/renewal/internal/models"
	"github.com/fatflowers/renewal/internal/testutil"
	"github.com/fatflowers/renewal/pkg/config"
	"github.com/fatflowers/renewal/pkg/tool"
	types "github.com/fatflowers/renewal/pkg/types"
)

type fixture struct {
	svc   *Service
	db    *gorm.DB
	state *changestate.RedisStore
	clock *testutil.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testutil.Config()
	cfg.Feed = config.FeedConfig{DefaultLimit: 3, MaxLimit: 5}
	client, _ := testutil.NewRedis(t)
	log := zap.NewNop().Sugar()
	db := testutil.NewDB(t)
	state := changestate.NewRedisStore(client, cfg, log)
	svc := NewService(cfg, db, state, log, nil)
	clock := testutil.NewClock(time.Unix(1_700_000_000, 0))
	svc.SetClock(clock.Now)
	return &fixture{svc: svc, db: db, state: state, clock: clock}
}

func (f *fixture) addSub(t *testing.T, wallet string, nextPaymentAt int64, active bool) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		ID: tool.GenerateUUIDV7(), WalletAddress: wallet, PlanType: 1, AmountDue: 100,
		PeriodSeconds: 60, NextPaymentAt: nextPaymentAt, IsActive: active,
	}
	require.NoError(t, f.db.Create(sub).Error)
	return sub
}

func (f *fixture) addChange(t *testing.T, wallet string, effectiveAt int64, mutate func(*changestate.PlanChangeRequest)) {
	t.Helper()
	req := &changestate.PlanChangeRequest{
		WalletAddress: wallet, FromPlanType: 1, ToPlanType: 2, ToAmount: 200, ToPeriodSeconds: 60,
		EffectiveAt: effectiveAt, NextAttemptAt: changestate.UnixPtr(f.clock.Now()),
	}
	if mutate != nil {
		mutate(req)
	}
	lock := &changestate.CancelLock{WalletAddress: wallet, LockedUntil: effectiveAt, Reason: types.CancelLockReasonUpgradePending}
	require.NoError(t, f.state.PutPending(context.Background(), req, lock))
}

func wallets(subs []*models.Subscription) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.WalletAddress
	}
	return out
}

func TestDuePayments_OrderAndBounds(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now().Unix()
	f.addSub(t, "late", now-10, true)
	f.addSub(t, "oldest", now-100, true)
	f.addSub(t, "exact", now, true)
	f.addSub(t, "future", now+1, true)
	f.addSub(t, "inactive", now-1000, false)

	got, err := f.svc.DuePayments(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"oldest", "late", "exact"}, wallets(got))

	got, err = f.svc.DuePayments(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"oldest", "late"}, wallets(got))
}

func TestDuePaymentsGated_HoldsOverdueUnconfirmedChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := f.clock.Now().Unix()
	f.addSub(t, "plain", now-50, true)
	f.addSub(t, "held", now-40, true)
	f.addSub(t, "scheduled", now-30, true)
	f.addSub(t, "gaveup", now-20, true)
	f.addSub(t, "notyet", now-10, true)

	f.addChange(t, "held", now, nil)
	f.addChange(t, "scheduled", now, func(r *changestate.PlanChangeRequest) { r.Scheduled = true })
	f.addChange(t, "gaveup", now, func(r *changestate.PlanChangeRequest) { r.GiveUp = true })
	f.addChange(t, "notyet", now+3600, nil)

	raw, err := f.svc.DuePayments(ctx, 10)
	require.NoError(t, err)
	assert.Contains(t, wallets(raw), "held")

	got, err := f.svc.DuePaymentsGated(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"plain", "scheduled", "gaveup", "notyet"}, wallets(got))
}

func TestDuePaymentsGated_FillsPastHeldRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := f.clock.Now().Unix()
	// The first page is fully held; the gated feed must read on.
	for i := 0; i < 6; i++ {
		w := fmt.Sprintf("held-%d", i)
		f.addSub(t, w, now-1000+int64(i), true)
		f.addChange(t, w, now-1, nil)
	}
	f.addSub(t, "a", now-5, true)
	f.addSub(t, "b", now-4, true)

	got, err := f.svc.DuePaymentsGated(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, wallets(got))
}

func TestDuePaymentsGated_MalformedChangeDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	client, _ := testutil.NewRedis(t)
	cfg := testutil.Config()
	log := zap.NewNop().Sugar()
	db := testutil.NewDB(t)
	svc := NewService(cfg, db, changestate.NewRedisStore(client, cfg, log), log, nil)
	now := time.Now().Unix()
	require.NoError(t, db.Create(&models.Subscription{ID: tool.GenerateUUIDV7(), WalletAddress: "w1", PeriodSeconds: 60, NextPaymentAt: now - 5, IsActive: true}).Error)
	require.NoError(t, client.Set(ctx, "test:plan_change:{w1}", "{broken", 0).Err())

	got, err := svc.DuePaymentsGated(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, wallets(got))
}

func TestDuePlanChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	now := f.clock.Now()
	f.addChange(t, "due", now.Unix()+100, nil)
	f.addChange(t, "later", now.Unix()+100, func(r *changestate.PlanChangeRequest) {
		r.Attempts = 1
		r.NextAttemptAt = changestate.UnixPtr(now.Add(time.Minute))
	})
	f.addChange(t, "scheduled", now.Unix()+100, func(r *changestate.PlanChangeRequest) {
		r.Scheduled = true
		r.NextAttemptAt = nil
	})
	f.addChange(t, "gaveup", now.Unix()+100, func(r *changestate.PlanChangeRequest) {
		r.GiveUp = true
		r.NextAttemptAt = nil
	})

	collect := func(onlyUnscheduled bool) []string {
		var out []string
		var cursor uint64
		for {
			page, err := f.svc.DuePlanChanges(ctx, cursor, 2, onlyUnscheduled)
			require.NoError(t, err)
			for _, r := range page.Items {
				out = append(out, r.WalletAddress)
			}
			if page.NextCursor == 0 {
				return out
			}
			cursor = page.NextCursor
		}
	}

	assert.ElementsMatch(t, []string{"due"}, collect(true))
	assert.ElementsMatch(t, []string{"due", "later", "scheduled", "gaveup"}, collect(false))

	f.clock.Advance(time.Minute)
	assert.ElementsMatch(t, []string{"due", "later"}, collect(true))
}
