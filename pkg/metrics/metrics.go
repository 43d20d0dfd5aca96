package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HistogramBuckets are in milliseconds. Handlers answer in tens of ms; intake
// waits on the wallet lock and a DB transaction, so the tail reaches a few seconds.
var HistogramBuckets = []float64{
	5, 10, 25, 50, 75, 100, 150, 250, 400, 600, 800,
	1000, 1500, 2000, 3000, 5000, 10000,
}

// Metric describes a collector to be built by NewMetric.
type Metric struct {
	ID          string
	Name        string
	Description string
	Type        string
	Args        []string
}

// NewMetric builds the collector for m.Type, or nil for an unknown type.
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	switch m.Type {
	case "counter_vec":
		return prometheus.NewCounterVec(prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description}, m.Args)
	case "counter":
		return prometheus.NewCounter(prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description})
	case "histogram_vec":
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: HistogramBuckets}, m.Args)
	case "summary_vec":
		return prometheus.NewSummaryVec(prometheus.SummaryOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description}, m.Args)
	}
	return nil
}

var MetricsBusinessProcess = &Metric{
	ID:          "bpDur",
	Name:        "bp_dur",
	Description: "Business operation latency in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"type", "subtype"},
}

var metricScheduleReports = &Metric{
	ID:          "scheduleReports",
	Name:        "plan_change_schedule_reports_total",
	Description: "Executor schedule outcome reports, partitioned by result.",
	Type:        "counter_vec",
	Args:        []string{"result"},
}

var metricGiveUps = &Metric{
	ID:          "giveUps",
	Name:        "plan_change_give_up_total",
	Description: "Plan changes that exhausted their schedule retries.",
	Type:        "counter",
}

var metricCommits = &Metric{
	ID:          "commits",
	Name:        "plan_change_commits_total",
	Description: "Plan changes applied to the durable subscription record.",
	Type:        "counter",
}

var metricPaymentReports = &Metric{
	ID:          "paymentReports",
	Name:        "payment_reports_total",
	Description: "Executor payment outcome reports, partitioned by result.",
	Type:        "counter_vec",
	Args:        []string{"result"},
}

var metricAlerts = &Metric{
	ID:          "alerts",
	Name:        "alerts_total",
	Description: "Plan change alerts, partitioned by type and delivery result.",
	Type:        "counter_vec",
	Args:        []string{"type", "result"},
}
