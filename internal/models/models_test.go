package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTableNames(t *testing.T) {
	require.Equal(t, "subscription", Subscription{}.TableName())
	require.Equal(t, "subscription_log", SubscriptionLog{}.TableName())
	require.Equal(t, "payment_log", PaymentLog{}.TableName())
	require.Equal(t, "alert_log", AlertLog{}.TableName())
}

func TestSubscription_IsDue(t *testing.T) {
	now := time.Unix(1735689600, 0)
	s := &Subscription{IsActive: true, NextPaymentAt: now.Unix()}
	require.True(t, s.IsDue(now))
	require.False(t, s.IsDue(now.Add(-time.Second)))

	s.IsActive = false
	require.False(t, s.IsDue(now))

	var nilSub *Subscription
	require.False(t, nilSub.IsDue(now))
}

func TestSubscription_SnapshotIsIndependent(t *testing.T) {
	s := &Subscription{ID: "a", PlanType: 1}
	cp := s.Snapshot()
	cp.PlanType = 2
	require.Equal(t, 1, int(s.PlanType))
	require.Nil(t, (*Subscription)(nil).Snapshot())
}
