package models

import (
	_ "embed"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

//go:embed schema.sql
var schemaSQL string

// AutoMigrate applies schema.sql. Every statement is idempotent so it is safe
// to run on each start.
func AutoMigrate(db *gorm.DB, log zerolog.Logger) error {
	log.Info().Msg("Running database migrations using SQL schema")

	if err := db.Exec(schemaSQL).Error; err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Msg("Database migrations completed successfully")
	return nil
}
