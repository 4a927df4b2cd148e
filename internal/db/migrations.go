package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS lane_events (
		id          BIGSERIAL PRIMARY KEY,
		lane        TEXT NOT NULL,
		details     JSONB,
		counted_at  TIMESTAMPTZ NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_lane_events_lane ON lane_events(lane);`,
	`CREATE INDEX IF NOT EXISTS idx_lane_events_counted_at ON lane_events(counted_at);`,
}

// Open connects to postgres and applies migrations.
func Open(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := runMigrations(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
