package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestBusiness_CountersRegisterAndIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	b, err := NewBusiness(reg)
	require.NoError(t, err)

	b.ScheduleReport("failure")
	b.ScheduleReport("failure")
	b.GiveUp()
	b.PaymentReport("success")
	b.Alert("plan_change_give_up", "delivered")
	b.ObserveProcess("intake", "payment", time.Now())

	require.Equal(t, float64(2), testutil.ToFloat64(b.scheduleReports.WithLabelValues("failure")))
	require.Equal(t, float64(1), testutil.ToFloat64(b.giveUps))
	require.Equal(t, float64(0), testutil.ToFloat64(b.commits))

	_, err = NewBusiness(reg)
	require.Error(t, err, "duplicate registration must fail")
}

func TestBusiness_NilIsNoop(t *testing.T) {
	var b *Business
	b.ScheduleReport("success")
	b.GiveUp()
	b.Commit()
	b.PaymentReport("failure")
	b.Alert("x", "y")
	b.ObserveProcess("a", "b", time.Now())
}
