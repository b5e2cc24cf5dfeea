package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/linkhub/backend/internal/database"
	"github.com/linkhub/backend/internal/models"
	"github.com/rs/zerolog"
)

// UsageService reads, checks and mutates per-workspace usage counters. Redis
// is the fast path; the database is both the fallback and the ground truth.
type UsageService struct {
	store    Store
	counters Counters
	clock    quartz.Clock
	metrics  *Metrics
	logger   zerolog.Logger
}

func NewUsageService(store Store, counters Counters, clock quartz.Clock, metrics *Metrics, logger zerolog.Logger) *UsageService {
	return &UsageService{
		store:    store,
		counters: counters,
		clock:    clock,
		metrics:  metrics,
		logger:   logger.With().Str("service", "UsageService").Logger(),
	}
}

// GetWorkspace loads a workspace, mapping a missing row to ErrWorkspaceNotFound.
func (s *UsageService) GetWorkspace(ctx context.Context, workspaceID string) (*models.Workspace, error) {
	ws, err := s.store.GetWorkspace(ctx, workspaceID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workspace %s: %w", workspaceID, err)
	}
	return ws, nil
}

// LimitsFor resolves the effective limits of ws at the current time.
func (s *UsageService) LimitsFor(ws *models.Workspace) ResolvedLimits {
	custom, err := models.ParseCustomLimits(ws.CustomLimits)
	if err != nil {
		s.logger.Warn().Err(err).Str("workspace_id", ws.ID).Msg("Ignoring malformed custom limits")
		custom = nil
	}
	return ResolveLimits(ws, custom, s.clock.Now())
}

// countFromStore computes a metric's ground truth from the database.
func (s *UsageService) countFromStore(ctx context.Context, workspaceID string, metric models.Metric, now time.Time) (int64, error) {
	switch metric {
	case models.MetricLinks:
		return s.store.CountLinks(ctx, workspaceID)
	case models.MetricClicks:
		return s.store.CountClicksSince(ctx, workspaceID, models.MonthStart(now))
	case models.MetricUsers:
		return s.store.CountActiveMembers(ctx, workspaceID)
	}
	return 0, fmt.Errorf("unknown metric %q", metric)
}
