package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SchedulerConfig holds the cron specs of the usage jobs. Sync and reset
// specs run in UTC, the zone of counter keys and monthly periods. Location
// applies to the alert sweep only.
type SchedulerConfig struct {
	SyncSpec   string
	ResetSpec  string
	AlertSpec  string
	JobTimeout time.Duration
	Location   *time.Location
}

// Scheduler runs the periodic usage jobs. Each job can also be invoked
// directly.
type Scheduler struct {
	cron    *cron.Cron
	entries map[string]cron.EntryID
	sync    *UsageSyncService
	alerts  *UsageAlertService
	timeout time.Duration
	logger  zerolog.Logger
}

func NewScheduler(cfg SchedulerConfig, sync *UsageSyncService, alerts *UsageAlertService, logger zerolog.Logger) (*Scheduler, error) {
	logger = logger.With().Str("service", "Scheduler").Logger()
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		entries: map[string]cron.EntryID{},
		sync:    sync,
		alerts:  alerts,
		timeout: cfg.JobTimeout,
		logger:  logger,
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Minute
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context)
	}{
		{"usage-sync", withZone(cfg.SyncSpec, time.UTC), s.RunDailySync},
		{"monthly-reset", withZone(cfg.ResetSpec, time.UTC), s.RunMonthlyReset},
		{"usage-alerts", cfg.AlertSpec, s.RunAlertSweep},
	}
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		run := job.run
		id, err := s.cron.AddFunc(job.spec, func() { run(context.Background()) })
		if err != nil {
			return nil, fmt.Errorf("invalid schedule %q for %s: %w", job.spec, job.name, err)
		}
		s.entries[job.name] = id
	}
	return s, nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop waits for running jobs to finish or ctx to expire
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info().Msg("Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn().Msg("Scheduler stop timed out with jobs still running")
	}
}

// RunDailySync copies every workspace's counters to the database.
func (s *Scheduler) RunDailySync(ctx context.Context) {
	s.runJob(ctx, "usage-sync", s.sync.SyncAllWorkspaces)
}

// RunMonthlyReset zeroes click counters for the new month.
func (s *Scheduler) RunMonthlyReset(ctx context.Context) {
	s.runJob(ctx, "monthly-reset", s.sync.ResetMonthlyCounters)
}

// RunAlertSweep sends the daily usage alert emails.
func (s *Scheduler) RunAlertSweep(ctx context.Context) {
	if s.alerts == nil {
		return
	}
	s.runJob(ctx, "usage-alerts", s.alerts.RunAlertSweep)
}

func (s *Scheduler) runJob(ctx context.Context, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	clock := s.sync.clock()
	start := clock.Now()
	s.logger.Info().Str("job", name).Msg("Job started")
	if err := fn(ctx); err != nil {
		s.logger.Error().Err(err).Str("job", name).Dur("took", clock.Since(start)).Msg("Job failed")
		return
	}
	s.logger.Info().Str("job", name).Dur("took", clock.Since(start)).Msg("Job finished")
}

// withZone pins spec to loc, replacing any TZ= or CRON_TZ= prefix.
func withZone(spec string, loc *time.Location) string {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return ""
	}
	if strings.HasPrefix(spec, "TZ=") || strings.HasPrefix(spec, "CRON_TZ=") {
		_, rest, _ := strings.Cut(spec, " ")
		spec = strings.TrimSpace(rest)
	}
	return "CRON_TZ=" + loc.String() + " " + spec
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
