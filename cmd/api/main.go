package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/linkhub/backend/internal/config"
	"github.com/linkhub/backend/internal/database"
	"github.com/linkhub/backend/internal/handlers"
	"github.com/linkhub/backend/internal/logger"
	"github.com/linkhub/backend/internal/middleware"
	"github.com/linkhub/backend/internal/models"
	"github.com/linkhub/backend/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.IsDevelopment(), cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database and Redis
	conns, err := database.Connect(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer conns.Close()

	// Run migrations
	if err := models.AutoMigrate(conns.DB, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid TIMEZONE")
	}
	limiter, err := middleware.NewRateLimiter(conns.Redis, cfg.RateLimit, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid RATE_LIMIT")
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := database.NewStore(conns.DB)
	usage := services.NewUsageService(store, database.NewCounters(conns.Redis), quartz.NewReal(), services.NewMetrics(reg), log)
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

	var scheduler *services.Scheduler
	if cfg.RunScheduler {
		scheduler, err = services.NewScheduler(services.SchedulerConfig{
			SyncSpec:   cfg.UsageSyncCron,
			ResetSpec:  cfg.UsageResetCron,
			AlertSpec:  cfg.UsageAlertCron,
			JobTimeout: cfg.UsageJobTimeout,
			Location:   loc,
		}, sync, alerts, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create scheduler")
		}
		scheduler.Start()
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "LinkHub API v1.0",
		ServerHeader: "LinkHub",
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: handlers.ErrorHandler(log),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.Logger(log))
	app.Use(middleware.CORS())

	handlers.Register(app, handlers.Deps{
		JWTSecret: cfg.JWTSecret,
		Store:     store,
		Usage:     usage,
		Sync:      sync,
		Alerts:    alerts,
		Limiter:   limiter,
		Gatherer:  reg,
		Logger:    log,
	})

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if scheduler != nil {
			scheduler.Stop(shutdownCtx)
		}
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	log.Info().Str("addr", addr).Msg("Starting LinkHub API server")
	if err := app.Listen(addr); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
