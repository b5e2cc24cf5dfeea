package database

import (
	"fmt"
	"time"

	"github.com/linkhub/backend/internal/models"
)

const (
	// monthlyKeyGrace keeps last month's click key readable for a day after
	// rollover so late syncs do not lose the tail of the month.
	monthlyKeyGrace = 24 * time.Hour
)

// CounterKey returns the Redis key for a workspace metric at now.
// Click keys embed the UTC year-month so they roll over on their own.
func CounterKey(workspaceID string, metric models.Metric, now time.Time) string {
	switch metric {
	case models.MetricClicks:
		return fmt.Sprintf("workspace:%s:clicks:%s", workspaceID, now.UTC().Format("2006-01"))
	case models.MetricUsers:
		return fmt.Sprintf("workspace:%s:members", workspaceID)
	default:
		return fmt.Sprintf("workspace:%s:%s", workspaceID, metric)
	}
}

// SyncLockKey is the per-workspace reconciliation lock
func SyncLockKey(workspaceID string) string {
	return fmt.Sprintf("workspace:%s:sync:lock", workspaceID)
}

// CounterTTL returns the expiry for a metric's key, 0 for keys that never
// expire.
func CounterTTL(metric models.Metric, now time.Time) time.Duration {
	if !metric.IsMonthly() {
		return 0
	}
	nextMonth := models.MonthStart(now).AddDate(0, 1, 0)
	return nextMonth.Sub(now.UTC()) + monthlyKeyGrace
}
