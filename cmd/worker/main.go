package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/linkhub/backend/internal/config"
	"github.com/linkhub/backend/internal/database"
	"github.com/linkhub/backend/internal/logger"
	"github.com/linkhub/backend/internal/services"
	"github.com/prometheus/client_golang/prometheus"
)

// The worker runs the usage jobs on their cron schedule. With -run it
// executes a single job and exits.
func main() {
	runOnce := flag.String("run", "", "run one job and exit: sync, reset or alerts")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.IsDevelopment(), cfg.LogLevel)
	log.Info().Msg("Starting LinkHub usage worker...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conns, err := database.Connect(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer conns.Close()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid TIMEZONE")
	}
	usage := services.NewUsageService(
		database.NewStore(conns.DB),
		database.NewCounters(conns.Redis),
		quartz.NewReal(),
		services.NewMetrics(prometheus.DefaultRegisterer),
		log,
	)
	sync := services.NewUsageSyncService(usage, services.UsageSyncOptions{
		LockTTL:     cfg.UsageSyncLockTTL,
		Concurrency: cfg.UsageSyncConcurrency,
	}, log)
	email := services.NewEmailService(services.EmailConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		FromName: cfg.SMTPFromName,
		FromAddr: cfg.SMTPFromEmail,
		BaseURL:  cfg.AppBaseURL,
	}, log)
	alerts := services.NewUsageAlertService(usage, email, loc, log)

	scheduler, err := services.NewScheduler(services.SchedulerConfig{
		SyncSpec:   cfg.UsageSyncCron,
		ResetSpec:  cfg.UsageResetCron,
		AlertSpec:  cfg.UsageAlertCron,
		JobTimeout: cfg.UsageJobTimeout,
		Location:   loc,
	}, sync, alerts, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create scheduler")
	}

	switch *runOnce {
	case "":
	case "sync":
		scheduler.RunDailySync(ctx)
		return
	case "reset":
		scheduler.RunMonthlyReset(ctx)
		return
	case "alerts":
		scheduler.RunAlertSweep(ctx)
		return
	default:
		log.Fatal().Str("job", *runOnce).Msg("Unknown job")
	}

	scheduler.Start()
	log.Info().Msg("Usage worker started")

	<-ctx.Done()
	log.Info().Msg("Shutting down usage worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	scheduler.Stop(shutdownCtx)
}
