package services

import (
	"context"
	"fmt"

	"github.com/linkhub/backend/internal/database"
	"github.com/linkhub/backend/internal/models"
)

// GetCurrentUsage returns the current value of metric for a workspace. A
// Redis hit is returned as-is. On a miss, or when Redis is unavailable, the
// value is counted from the database and written back to Redis. Only a
// database failure is returned as an error.
func (s *UsageService) GetCurrentUsage(ctx context.Context, workspaceID string, metric models.Metric) (int64, error) {
	now := s.clock.Now()
	key := database.CounterKey(workspaceID, metric, now)

	lookup := s.counters.Get(ctx, key)
	switch lookup.Status {
	case database.LookupHit:
		return lookup.Value, nil
	case database.LookupUnavailable:
		s.metrics.fallback("read", metric)
		s.logger.Warn().Err(lookup.Err).
			Str("workspace_id", workspaceID).
			Str("metric", string(metric)).
			Msg("Redis unavailable, counting usage from database")
	}

	count, err := s.countFromStore(ctx, workspaceID, metric, now)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s for workspace %s: %w", metric, workspaceID, err)
	}

	if err := s.counters.Set(ctx, key, count, database.CounterTTL(metric, now)); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("Failed to repopulate usage counter")
	}
	return count, nil
}

// MetricUsage is the usage of one metric against its limit.
type MetricUsage struct {
	Current    int64   `json:"current"`
	Limit      int64   `json:"limit"`
	Percentage float64 `json:"percentage"`
	Unlimited  bool    `json:"unlimited"`
}

// UsageSummary is the usage of every metric of a workspace.
type UsageSummary struct {
	WorkspaceID string                        `json:"workspace_id"`
	Plan        models.Plan                   `json:"plan"`
	Limits      ResolvedLimits                `json:"limits"`
	Usage       map[models.Metric]MetricUsage `json:"usage"`
}

// GetUsageSummary reads every metric of a workspace.
func (s *UsageService) GetUsageSummary(ctx context.Context, workspaceID string) (*UsageSummary, error) {
	ws, err := s.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	limits := s.LimitsFor(ws)

	summary := &UsageSummary{
		WorkspaceID: ws.ID,
		Plan:        ws.Plan,
		Limits:      limits,
		Usage:       make(map[models.Metric]MetricUsage, len(models.AllMetrics)),
	}
	for _, metric := range models.AllMetrics {
		current, err := s.GetCurrentUsage(ctx, ws.ID, metric)
		if err != nil {
			return nil, err
		}
		limit := limits.For(metric)
		m := MetricUsage{Current: current, Limit: limit, Unlimited: limit == models.Unlimited}
		if !m.Unlimited {
			m.Percentage = usagePercentage(current, limit)
		}
		summary.Usage[metric] = m
	}
	return summary, nil
}
