// ./internal/state/db.go
package state

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool. The store is optional: every
// function in this package reports "database not initialized" when the pool
// was never opened, and the engine treats that as a no-op concern.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		DB = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
		DB = nil
	}
}

// Ready reports whether the audit store is available.
func Ready() bool {
	return DB != nil
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS scoring_parameters (
			params_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			config_name VARCHAR(255) NOT NULL DEFAULT 'default',
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			parameters JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_scoring_parameters_active
			ON scoring_parameters (config_name, is_active);

		CREATE TABLE IF NOT EXISTS report_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			wallet_address VARCHAR(64) NOT NULL,
			fallback BOOLEAN NOT NULL,
			score INTEGER NOT NULL,
			score_breakdown JSONB NOT NULL,
			metrics JSONB,
			stake JSONB,
			loan_limit_eth DECIMAL(38, 18) NOT NULL,
			generated_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_report_snapshots_wallet
			ON report_snapshots (wallet_address, generated_at DESC);

		CREATE TABLE IF NOT EXISTS proposal_records (
			proposal_id SERIAL PRIMARY KEY,
			borrower VARCHAR(64) NOT NULL,
			sign_method VARCHAR(32) NOT NULL,
			payload JSONB NOT NULL,
			signature TEXT NOT NULL,
			tx_hash VARCHAR(80),
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_proposal_records_borrower
			ON proposal_records (borrower, created_at DESC);
	`
	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	log.Info().Msg("Database schema ensured")
	return nil
}
