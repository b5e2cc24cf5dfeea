package services

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/hashicorp/go-multierror"
	"github.com/linkhub/backend/internal/database"
	"github.com/linkhub/backend/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSyncLockTTL = 60 * time.Second
	lockReleaseTimeout = 5 * time.Second
	defaultSyncFanOut  = 8
)

// UsageSnapshot is the ground-truth usage of a workspace at CountedAt.
type UsageSnapshot struct {
	WorkspaceID string    `json:"workspace_id"`
	Links       int64     `json:"links"`
	Clicks      int64     `json:"clicks"`
	Users       int64     `json:"users"`
	CountedAt   time.Time `json:"counted_at"`
}

func (s UsageSnapshot) value(metric models.Metric) int64 {
	switch metric {
	case models.MetricLinks:
		return s.Links
	case models.MetricClicks:
		return s.Clicks
	case models.MetricUsers:
		return s.Users
	}
	return 0
}

// UsageSyncOptions tune the reconciler.
type UsageSyncOptions struct {
	LockTTL     time.Duration
	Concurrency int
}

// UsageSyncService reconciles Redis counters with the durable store.
type UsageSyncService struct {
	usage       *UsageService
	lockTTL     time.Duration
	concurrency int
	logger      zerolog.Logger
}

func NewUsageSyncService(usage *UsageService, opts UsageSyncOptions, logger zerolog.Logger) *UsageSyncService {
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultSyncLockTTL
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultSyncFanOut
	}
	return &UsageSyncService{
		usage:       usage,
		lockTTL:     opts.LockTTL,
		concurrency: opts.Concurrency,
		logger:      logger.With().Str("service", "UsageSyncService").Logger(),
	}
}

func (s *UsageSyncService) clock() quartz.Clock { return s.usage.clock }

// SyncUsageToDatabase copies the workspace's Redis counters into the durable
// store. It returns false without error when another run holds the lock or
// Redis is unreachable. Counters that are missing are skipped.
func (s *UsageSyncService) SyncUsageToDatabase(ctx context.Context, workspaceID string) (bool, error) {
	counters := s.usage.counters
	unlock, acquired, err := counters.TryLock(ctx, database.SyncLockKey(workspaceID), s.lockTTL)
	if err != nil {
		s.usage.metrics.sync("unavailable")
		s.logger.Warn().Err(err).Str("workspace_id", workspaceID).Msg("Cannot take sync lock, skipping")
		return false, nil
	}
	if !acquired {
		s.usage.metrics.sync("locked")
		s.logger.Debug().Str("workspace_id", workspaceID).Msg("Sync already in progress")
		return false, nil
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
		defer cancel()
		if err := unlock(releaseCtx); err != nil {
			s.logger.Warn().Err(err).Str("workspace_id", workspaceID).Msg("Failed to release sync lock")
		}
	}()

	now := s.clock().Now()
	rows := make([]models.UsageMetric, 0, len(models.AllMetrics))
	for _, metric := range models.AllMetrics {
		lookup := counters.Get(ctx, database.CounterKey(workspaceID, metric, now))
		if lookup.Status != database.LookupHit {
			continue
		}
		rows = append(rows, models.NewUsageMetric(workspaceID, metric, now, lookup.Value))
	}

	if err := s.usage.store.SaveUsageSnapshot(ctx, rows); err != nil {
		s.usage.metrics.sync("failed")
		return false, fmt.Errorf("failed to sync usage for workspace %s: %w", workspaceID, err)
	}
	s.usage.metrics.sync("synced")
	s.logger.Debug().Str("workspace_id", workspaceID).Int("metrics", len(rows)).Msg("Usage synced")
	return true, nil
}

// SyncAllWorkspaces syncs every workspace with bounded parallelism. One
// workspace failing does not stop the others.
func (s *UsageSyncService) SyncAllWorkspaces(ctx context.Context) error {
	ids, err := s.usage.store.ListWorkspaceIDs(ctx)
	if err != nil {
		return err
	}

	errs := make([]error, len(ids))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return nil
			}
			_, errs[i] = s.SyncUsageToDatabase(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	var result *multierror.Error
	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			result = multierror.Append(result, err)
		}
	}
	s.logger.Info().Int("workspaces", len(ids)).Int("failed", failed).Msg("Usage sync finished")
	return result.ErrorOrNil()
}

// RecalculateUsage recounts a workspace from the durable store, overwrites
// its Redis counters and persists the result.
func (s *UsageSyncService) RecalculateUsage(ctx context.Context, workspaceID string) (*UsageSnapshot, error) {
	if _, err := s.usage.GetWorkspace(ctx, workspaceID); err != nil {
		return nil, err
	}

	now := s.clock().Now()
	snapshot := &UsageSnapshot{WorkspaceID: workspaceID, CountedAt: now.UTC()}
	for _, metric := range models.AllMetrics {
		v, err := s.usage.countFromStore(ctx, workspaceID, metric, now)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s for workspace %s: %w", metric, workspaceID, err)
		}
		switch metric {
		case models.MetricLinks:
			snapshot.Links = v
		case models.MetricClicks:
			snapshot.Clicks = v
		case models.MetricUsers:
			snapshot.Users = v
		}
	}

	cached := true
	for _, metric := range models.AllMetrics {
		key := database.CounterKey(workspaceID, metric, now)
		if err := s.usage.counters.Set(ctx, key, snapshot.value(metric), database.CounterTTL(metric, now)); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to write recalculated counter")
			cached = false
			break
		}
	}

	if cached {
		synced, err := s.SyncUsageToDatabase(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
		if synced {
			return snapshot, nil
		}
	}

	rows := make([]models.UsageMetric, 0, len(models.AllMetrics))
	for _, metric := range models.AllMetrics {
		rows = append(rows, models.NewUsageMetric(workspaceID, metric, now, snapshot.value(metric)))
	}
	if err := s.usage.store.SaveUsageSnapshot(ctx, rows); err != nil {
		return nil, fmt.Errorf("failed to save usage snapshot for workspace %s: %w", workspaceID, err)
	}
	return snapshot, nil
}

// ResetMonthlyCounters zeroes the current month's click counter of every
// workspace. Durable monthly rows are kept as history.
func (s *UsageSyncService) ResetMonthlyCounters(ctx context.Context) error {
	ids, err := s.usage.store.ListWorkspaceIDs(ctx)
	if err != nil {
		return err
	}

	now := s.clock().Now()
	ttl := database.CounterTTL(models.MetricClicks, now)
	var result *multierror.Error
	failed := 0
	for _, id := range ids {
		key := database.CounterKey(id, models.MetricClicks, now)
		if err := s.usage.counters.Set(ctx, key, 0, ttl); err != nil {
			failed++
			result = multierror.Append(result, fmt.Errorf("workspace %s: %w", id, err))
		}
	}

	s.logger.Info().Int("workspaces", len(ids)).Int("failed", failed).Msg("Monthly click counters reset")
	return result.ErrorOrNil()
}
