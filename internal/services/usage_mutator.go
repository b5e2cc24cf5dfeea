package services

import (
	"context"
	"fmt"

	"github.com/linkhub/backend/internal/database"
	"github.com/linkhub/backend/internal/models"
	"github.com/rs/zerolog"
)

// Increment adds amount to metric after the business row was committed.
// Failures are logged and absorbed.
func (s *UsageService) Increment(ctx context.Context, workspaceID string, metric models.Metric, amount int64) {
	if amount <= 0 {
		return
	}
	now := s.clock.Now()
	key := database.CounterKey(workspaceID, metric, now)

	v, err := s.counters.IncrBy(ctx, key, amount)
	if err == nil {
		switch {
		case metric.IsMonthly():
			if err := s.counters.Expire(ctx, key, database.CounterTTL(metric, now)); err != nil {
				s.logger.Debug().Err(err).Str("key", key).Msg("Failed to refresh counter expiry")
			}
		case v == amount:
			// The key did not exist, so the value is not a full count.
			// Drop it and let the next read count from the database.
			s.dropCounter(ctx, key)
		}
		return
	}

	s.metrics.fallback("increment", metric)
	s.logEvent(s.logger.Warn().Err(err), workspaceID, metric).Msg("Redis unavailable, incrementing durable usage")
	if err := s.store.IncrementUsageMetric(ctx, models.NewUsageMetric(workspaceID, metric, now, amount)); err != nil {
		s.logEvent(s.logger.Error().Err(err), workspaceID, metric).Msg("Failed to increment durable usage")
	}
}

// Decrement subtracts amount from a lifetime metric. Monthly metrics are
// never decremented.
func (s *UsageService) Decrement(ctx context.Context, workspaceID string, metric models.Metric, amount int64) {
	if metric.IsMonthly() || amount <= 0 {
		return
	}
	key := database.CounterKey(workspaceID, metric, s.clock.Now())

	v, err := s.counters.DecrBy(ctx, key, amount)
	if err == nil {
		if v < 0 {
			s.dropCounter(ctx, key)
		}
		return
	}

	s.metrics.fallback("decrement", metric)
	s.logEvent(s.logger.Warn().Err(err), workspaceID, metric).Msg("Redis unavailable, decrementing durable usage")
	if err := s.store.DecrementUsageMetric(ctx, workspaceID, metric, amount); err != nil {
		s.logEvent(s.logger.Error().Err(err), workspaceID, metric).Msg("Failed to decrement durable usage")
	}
}

// TrackClick records a click and bumps the monthly click counter. It never
// fails the redirect that called it.
func (s *UsageService) TrackClick(ctx context.Context, event *models.ClickEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("panic", fmt.Sprint(r)).Msg("Recovered while tracking click")
		}
	}()

	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now().UTC()
	}
	if err := s.store.CreateClickEvent(ctx, event); err != nil {
		s.logger.Error().Err(err).
			Str("workspace_id", event.WorkspaceID).
			Str("link_id", event.LinkID).
			Msg("Failed to record click event")
		return
	}
	s.Increment(ctx, event.WorkspaceID, models.MetricClicks, 1)
}

func (s *UsageService) dropCounter(ctx context.Context, key string) {
	if err := s.counters.Delete(ctx, key); err != nil {
		s.logger.Debug().Err(err).Str("key", key).Msg("Failed to drop partial counter")
	}
}

func (s *UsageService) logEvent(e *zerolog.Event, workspaceID string, metric models.Metric) *zerolog.Event {
	return e.Str("workspace_id", workspaceID).Str("metric", string(metric))
}
