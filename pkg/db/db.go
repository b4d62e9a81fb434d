package db

import (
	"errors"
	"fmt"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/doodlesbykumbi/msl-wiretap/pkg/slosilo/store"
)

var ErrNoDatabaseURL = errors.New("DATABASE_URL environment variable is required")

// Config holds database connection configuration
type Config struct {
	// URL is the database connection URL (defaults to DATABASE_URL env var)
	URL string
}

// Connect establishes a database connection.
// If no URL is provided, it reads from DATABASE_URL environment variable.
func Connect(cfg Config) (*gorm.DB, error) {
	dbURL := cfg.URL
	if dbURL == "" {
		dbURL = URL()
	}
	if dbURL == "" {
		return nil, ErrNoDatabaseURL
	}

	db, err := gorm.Open(
		postgres.New(postgres.Config{
			DSN:                  dbURL,
			PreferSimpleProtocol: true, // disables implicit prepared statement usage
		}),
		&gorm.Config{
			Logger: logger.Default.LogMode(LogMode()),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// LogMode is silent unless WIRETAP_LOG_LEVEL=debug is set
func LogMode() logger.LogLevel {
	if os.Getenv("WIRETAP_LOG_LEVEL") == "debug" {
		return logger.Info
	}
	return logger.Silent
}

// OpenKeyStore connects to the database and opens the keystore with the
// data key.
func OpenKeyStore(cfg Config, dataKey []byte) (*store.KeyStore, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	return store.NewKeyStore(db, dataKey)
}

// URL returns the database URL from environment.
// Returns empty string if DATABASE_URL is not set.
func URL() string {
	return os.Getenv("DATABASE_URL")
}
