package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Env      string `envconfig:"ENV" default:"production"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// API
	APIPort    int    `envconfig:"API_PORT" default:"8080"`
	AppBaseURL string `envconfig:"APP_BASE_URL" default:"http://localhost:3000"`
	RateLimit  string `envconfig:"RATE_LIMIT" default:"100-M"`

	// Database
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"linkhub"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"linkhub"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	// Redis
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// JWT issued by the identity provider
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Timezone used for the "once per day" alert boundary
	Timezone string `envconfig:"TIMEZONE" default:"UTC"`

	// Usage jobs
	RunScheduler         bool          `envconfig:"RUN_SCHEDULER" default:"false"`
	UsageSyncCron        string        `envconfig:"USAGE_SYNC_CRON" default:"0 3 * * *"`
	UsageResetCron       string        `envconfig:"USAGE_RESET_CRON" default:"0 0 1 * *"`
	UsageAlertCron       string        `envconfig:"USAGE_ALERT_CRON" default:"0 9 * * *"`
	UsageSyncLockTTL     time.Duration `envconfig:"USAGE_SYNC_LOCK_TTL" default:"60s"`
	UsageSyncConcurrency int           `envconfig:"USAGE_SYNC_CONCURRENCY" default:"8"`
	UsageJobTimeout      time.Duration `envconfig:"USAGE_JOB_TIMEOUT" default:"30m"`

	// SMTP
	SMTPHost      string `envconfig:"SMTP_HOST"`
	SMTPPort      int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername  string `envconfig:"SMTP_USERNAME"`
	SMTPPassword  string `envconfig:"SMTP_PASSWORD"`
	SMTPFromName  string `envconfig:"SMTP_FROM_NAME" default:"LinkHub"`
	SMTPFromEmail string `envconfig:"SMTP_FROM_EMAIL" default:"noreply@linkhub.local"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	if cfg.UsageSyncConcurrency < 1 {
		cfg.UsageSyncConcurrency = 1
	}
	return &cfg, nil
}

// Location returns the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// DSN builds the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// RedisAddr returns host:port for the Redis client.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment reports whether human-readable console logging should be used.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
