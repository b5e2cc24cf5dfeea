package database

import (
	"context"
	"fmt"
	"time"

	"github.com/linkhub/backend/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	connectMaxRetries = 30
	connectRetryDelay = 2 * time.Second
)

// Connections holds the durable store and the fast counter store clients.
type Connections struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// Connect opens PostgreSQL (retrying while the database starts up) and Redis.
// A Redis ping failure is logged rather than returned: counters fall back to
// the database when Redis is unavailable.
func Connect(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Connections, error) {
	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i < connectMaxRetries; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
			DisableForeignKeyConstraintWhenMigrating: true,
			TranslateError:                           true,
		})
		if err == nil {
			break
		}
		log.Warn().Err(err).Msgf("Database connection attempt %d/%d failed, retrying in %s", i+1, connectMaxRetries, connectRetryDelay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectRetryDelay):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", connectMaxRetries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info().Msg("Database connected successfully")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Error().Err(err).Msg("Redis ping failed, usage counters will fall back to the database")
	} else {
		log.Info().Msg("Redis connected successfully")
	}

	return &Connections{DB: db, Redis: rdb}, nil
}

// Close releases both connections.
func (c *Connections) Close() {
	if c == nil {
		return
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if c.Redis != nil {
		c.Redis.Close()
	}
}
