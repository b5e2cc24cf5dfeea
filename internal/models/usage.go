package models

import (
	"fmt"
	"time"
)

// Metric is a quota-bound resource
type Metric string

const (
	MetricLinks  Metric = "links"
	MetricClicks Metric = "clicks"
	MetricUsers  Metric = "users"
)

// AllMetrics is the reporting order used by alerts and usage summaries
var AllMetrics = []Metric{MetricLinks, MetricClicks, MetricUsers}

func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricLinks, MetricClicks, MetricUsers:
		return Metric(s), nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// IsMonthly reports whether the metric resets every calendar month
func (m Metric) IsMonthly() bool {
	return m == MetricClicks
}

const (
	PeriodLifetime = "lifetime"
	PeriodMonthly  = "monthly"
)

var (
	// LifetimePeriodStart and LifetimePeriodEnd bound the singleton lifetime row
	LifetimePeriodStart = time.Unix(0, 0).UTC()
	LifetimePeriodEnd   = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// UsageMetric is the durable copy of a usage counter
type UsageMetric struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"id"`
	WorkspaceID string    `gorm:"column:workspace_id;size:36;not null;uniqueIndex:idx_usage_metric_natural_key" json:"workspace_id"`
	MetricType  Metric    `gorm:"column:metric_type;size:20;not null;uniqueIndex:idx_usage_metric_natural_key" json:"metric_type"`
	Period      string    `gorm:"column:period;size:20;not null;uniqueIndex:idx_usage_metric_natural_key" json:"period"`
	PeriodStart time.Time `gorm:"column:period_start;not null;uniqueIndex:idx_usage_metric_natural_key" json:"period_start"`
	PeriodEnd   time.Time `gorm:"column:period_end;not null" json:"period_end"`
	Value       int64     `gorm:"column:value;not null;default:0" json:"value"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (UsageMetric) TableName() string {
	return "usage_metrics"
}

// UsagePeriod identifies the row a metric writes to at a point in time
type UsagePeriod struct {
	Period string
	Start  time.Time
	End    time.Time
}

// MonthStart returns the first instant of t's UTC calendar month
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PeriodFor returns the period bounds for metric at now
func PeriodFor(metric Metric, now time.Time) UsagePeriod {
	if metric.IsMonthly() {
		start := MonthStart(now)
		return UsagePeriod{Period: PeriodMonthly, Start: start, End: start.AddDate(0, 1, 0)}
	}
	return UsagePeriod{Period: PeriodLifetime, Start: LifetimePeriodStart, End: LifetimePeriodEnd}
}

// NewUsageMetric builds the natural-key row for metric at now
func NewUsageMetric(workspaceID string, metric Metric, now time.Time, value int64) UsageMetric {
	p := PeriodFor(metric, now)
	return UsageMetric{
		WorkspaceID: workspaceID,
		MetricType:  metric,
		Period:      p.Period,
		PeriodStart: p.Start,
		PeriodEnd:   p.End,
		Value:       value,
	}
}
