package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

const businessSubsystem = "renewal"

// Business holds the domain counters for the scheduler, intake and alerting.
// A nil *Business is valid and records nothing.
type Business struct {
	processDur      *prometheus.HistogramVec
	scheduleReports *prometheus.CounterVec
	giveUps         prometheus.Counter
	commits         prometheus.Counter
	paymentReports  *prometheus.CounterVec
	alerts          *prometheus.CounterVec
}

func NewBusiness(reg prometheus.Registerer) (*Business, error) {
	b := &Business{}
	for _, m := range []*Metric{MetricsBusinessProcess, metricScheduleReports, metricGiveUps, metricCommits, metricPaymentReports, metricAlerts} {
		c := NewMetric(m, businessSubsystem)
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register %s: %w", m.Name, err)
		}
		switch m {
		case MetricsBusinessProcess:
			b.processDur = c.(*prometheus.HistogramVec)
		case metricScheduleReports:
			b.scheduleReports = c.(*prometheus.CounterVec)
		case metricGiveUps:
			b.giveUps = c.(prometheus.Counter)
		case metricCommits:
			b.commits = c.(prometheus.Counter)
		case metricPaymentReports:
			b.paymentReports = c.(*prometheus.CounterVec)
		case metricAlerts:
			b.alerts = c.(*prometheus.CounterVec)
		}
	}
	return b, nil
}

func (b *Business) ObserveProcess(typ, subtype string, start time.Time) {
	if b == nil {
		return
	}
	b.processDur.WithLabelValues(typ, subtype).Observe(MillisecondsSince(start))
}

func (b *Business) ScheduleReport(result string) {
	if b == nil {
		return
	}
	b.scheduleReports.WithLabelValues(result).Inc()
}

func (b *Business) GiveUp() {
	if b == nil {
		return
	}
	b.giveUps.Inc()
}

func (b *Business) Commit() {
	if b == nil {
		return
	}
	b.commits.Inc()
}

func (b *Business) PaymentReport(result string) {
	if b == nil {
		return
	}
	b.paymentReports.WithLabelValues(result).Inc()
}

func (b *Business) Alert(typ, result string) {
	if b == nil {
		return
	}
	b.alerts.WithLabelValues(typ, result).Inc()
}

var Module = fx.Options(
	fx.Provide(func() (*Business, error) { return NewBusiness(prometheus.DefaultRegisterer) }),
)
