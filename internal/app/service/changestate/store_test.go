package changestate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/renewal/internal/testutil"
	"github.com/fatflowers/renewal/pkg/types"
)

func newTestStore(t *testing.T) (*RedisStore, func(key string) bool) {
	t.Helper()
	client, mr := testutil.NewRedis(t)
	s := NewRedisStore(client, testutil.Config(), zap.NewNop().Sugar())
	return s, mr.Exists
}

func samplePending(wallet string, effectiveAt int64) (*PlanChangeRequest, *CancelLock) {
	req := &PlanChangeRequest{
		WalletAddress:   wallet,
		FromPlanType:    1,
		ToPlanType:      2,
		ToAmount:        2000,
		ToPeriodSeconds: 2_592_000,
		EffectiveAt:     effectiveAt,
		CreatedAt:       effectiveAt - 100,
		NextAttemptAt:   UnixPtr(time.Unix(effectiveAt-100, 0)),
	}
	lock := &CancelLock{
		WalletAddress: wallet,
		LockedUntil:   effectiveAt,
		Reason:        types.CancelLockReasonUpgradePending,
		CreatedAt:     effectiveAt - 100,
	}
	return req, lock
}

func TestRedisStore_PutPendingAndClear(t *testing.T) {
	ctx := context.Background()
	s, exists := newTestStore(t)

	got, err := s.GetPlanChange(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, got)

	req, lock := samplePending("w1", 1_000_000)
	require.NoError(t, s.PutPending(ctx, req, lock))
	assert.True(t, exists("test:plan_change:{w1}"))
	assert.True(t, exists("test:cancel_lock:{w1}"))

	got, err = s.GetPlanChange(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, req, got)

	gotLock, err := s.GetCancelLock(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, gotLock.Blocks())
	assert.Equal(t, int64(1_000_000), gotLock.LockedUntil)

	require.NoError(t, s.Clear(ctx, "w1"))
	got, err = s.GetPlanChange(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, got)
	gotLock, err = s.GetCancelLock(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, gotLock)
}

func TestRedisStore_PutPendingOverwrites(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	first, lock := samplePending("w1", 1_000_000)
	first.Attempts = 4
	first.GiveUp = true
	require.NoError(t, s.PutPending(ctx, first, lock))

	second, lock2 := samplePending("w1", 2_000_000)
	second.ToPlanType = 3
	require.NoError(t, s.PutPending(ctx, second, lock2))

	got, err := s.GetPlanChange(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, types.PlanType(3), got.ToPlanType)
	assert.Zero(t, got.Attempts)
	assert.False(t, got.GiveUp)

	gotLock, err := s.GetCancelLock(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, int64(2_000_000), gotLock.LockedUntil)
}

func TestRedisStore_RecordGiveUpDropsCancelLock(t *testing.T) {
	ctx := context.Background()
	s, exists := newTestStore(t)

	req, lock := samplePending("w1", 1_000_000)
	require.NoError(t, s.PutPending(ctx, req, lock))

	req.GiveUp = true
	req.GiveUpAt = UnixPtr(time.Unix(1_000_500, 0))
	req.NextAttemptAt = nil
	require.NoError(t, s.RecordGiveUp(ctx, req))

	assert.False(t, exists("test:cancel_lock:{w1}"))
	got, err := s.GetPlanChange(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, got.GiveUp)
	assert.Nil(t, got.NextAttemptAt)
}

func TestRedisStore_MalformedPlanChange(t *testing.T) {
	ctx := context.Background()
	client, _ := testutil.NewRedis(t)
	s := NewRedisStore(client, testutil.Config(), zap.NewNop().Sugar())

	require.NoError(t, client.Set(ctx, "test:plan_change:{bad}", "{not json", 0).Err())
	require.NoError(t, client.Set(ctx, "test:plan_change:{down}",
		`{"wallet_address":"down","from_plan_type":3,"to_plan_type":1,"to_period_seconds":60,"effective_at":10}`, 0).Err())

	_, err := s.GetPlanChange(ctx, "bad")
	assert.True(t, errors.Is(err, ErrMalformed))
	_, err = s.GetPlanChange(ctx, "down")
	assert.True(t, errors.Is(err, ErrMalformed))

	good, lock := samplePending("good", 1_000_000)
	require.NoError(t, s.PutPending(ctx, good, lock))

	batch, err := s.GetPlanChanges(ctx, []string{"bad", "down", "good", "missing"})
	require.NoError(t, err)
	assert.Len(t, batch, 1)
	assert.Contains(t, batch, "good")
}

func TestRedisStore_MalformedCancelLockStillBlocks(t *testing.T) {
	ctx := context.Background()
	client, _ := testutil.NewRedis(t)
	s := NewRedisStore(client, testutil.Config(), zap.NewNop().Sugar())

	require.NoError(t, client.Set(ctx, "test:cancel_lock:{w1}", "garbage", 0).Err())
	lock, err := s.GetCancelLock(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, lock.Blocks())
}

func TestRedisStore_ScanPlanChanges(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	wallets := []string{"a", "b", "c", "d", "e"}
	for _, w := range wallets {
		req, lock := samplePending(w, 1_000_000)
		require.NoError(t, s.PutPending(ctx, req, lock))
	}

	seen := map[string]bool{}
	var cursor uint64
	for {
		page, next, err := s.ScanPlanChanges(ctx, cursor, 2)
		require.NoError(t, err)
		for _, r := range page {
			seen[r.WalletAddress] = true
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	assert.Len(t, seen, len(wallets))
}

func TestRedisStore_LockIsExclusive(t *testing.T) {
	ctx := context.Background()
	s, exists := newTestStore(t)

	release, err := s.Lock(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, exists("test:wallet_lock:{w1}"))

	_, err = s.Lock(ctx, "w1")
	assert.ErrorIs(t, err, types.ErrWalletBusy)

	other, err := s.Lock(ctx, "w2")
	require.NoError(t, err)
	other()

	release()
	assert.False(t, exists("test:wallet_lock:{w1}"))

	again, err := s.Lock(ctx, "w1")
	require.NoError(t, err)
	again()
}

func TestRedisStore_ReleaseKeepsForeignLock(t *testing.T) {
	ctx := context.Background()
	client, mr := testutil.NewRedis(t)
	s := NewRedisStore(client, testutil.Config(), zap.NewNop().Sugar())

	release, err := s.Lock(ctx, "w1")
	require.NoError(t, err)

	// The lease expired and another holder took over.
	require.NoError(t, mr.Set("test:wallet_lock:{w1}", "someone-else"))
	release()

	v, err := mr.Get("test:wallet_lock:{w1}")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}

func TestWithWalletLock(t *testing.T) {
	ctx := context.Background()
	s, exists := newTestStore(t)

	err := WithWalletLock(ctx, s, "w1", func(ctx context.Context) error {
		assert.True(t, exists("test:wallet_lock:{w1}"))
		return errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	assert.False(t, exists("test:wallet_lock:{w1}"))
}

func TestPlanChangeRequest_Predicates(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	req, _ := samplePending("w1", now.Unix())

	assert.True(t, req.Overdue(now))
	assert.False(t, req.Overdue(now.Add(-time.Second)))
	assert.True(t, req.BlocksBilling(now))
	assert.True(t, req.DueForAttempt(now))
	assert.False(t, req.Committable(now))

	req.Scheduled = true
	assert.False(t, req.BlocksBilling(now))
	assert.False(t, req.DueForAttempt(now))
	assert.True(t, req.Committable(now))
	assert.False(t, req.Committable(now.Add(-time.Second)))

	req.Scheduled = false
	req.GiveUp = true
	assert.False(t, req.BlocksBilling(now))
	assert.False(t, req.Committable(now))

	req.MarkAlerted(3)
	req.MarkAlerted(3)
	assert.Equal(t, []int{3}, req.AlertedAttempts)
	assert.True(t, req.HasAlerted(3))
}
