package gorm

import (
	"fmt"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds connection configuration for Open.
type Config struct {
	// URL is the database connection URL (defaults to RECMAP_DATABASE_URL env var)
	URL string
	// Key is the pgcrypto passphrase for encrypted fields
	Key string
}

// Open establishes a database connection and wraps it in an Executor.
// If no URL is provided, it reads from RECMAP_DATABASE_URL.
func Open(cfg Config) (*Executor, error) {
	dbURL := cfg.URL
	if dbURL == "" {
		dbURL = os.Getenv("RECMAP_DATABASE_URL")
	}
	if dbURL == "" {
		return nil, fmt.Errorf("RECMAP_DATABASE_URL environment variable is required")
	}

	// Default to silent logging unless RECMAP_LOG_LEVEL=debug is set
	logMode := logger.Silent
	if os.Getenv("RECMAP_LOG_LEVEL") == "debug" {
		logMode = logger.Info
	}

	db, err := gorm.Open(
		postgres.New(postgres.Config{
			DSN:                  dbURL,
			PreferSimpleProtocol: true, // disables implicit prepared statement usage
		}),
		&gorm.Config{
			Logger: logger.Default.LogMode(logMode),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return New(db, cfg.Key), nil
}
