package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/MoAftaab/crm-xeno/backend/config"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return NewDBFromConn(db, logger), nil
}

// NewDBFromConn wraps an existing connection pool
func NewDBFromConn(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:     db,
		logger: logger,
	}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// usersSchema creates the users table. google_id is the stable Google subject.
const usersSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		google_id VARCHAR(255) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		picture TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_login_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
`

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, usersSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
