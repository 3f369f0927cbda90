package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// ConnectionConfig holds database connection configuration
type ConnectionConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// DefaultConnectionConfig returns pool settings suitable for a single service instance
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxConns:    25,
		MinConns:    5,
		Timeout:     5 * time.Second,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
	}
}

// Validate checks the connection configuration
func (c ConnectionConfig) Validate() error {
	if c.URL == "" {
		return errors.New("database URL is required")
	}
	if c.MaxConns <= 0 {
		return errors.New("max connections must be positive")
	}
	if c.MinConns < 0 || c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections must be between 0 and %d", c.MaxConns)
	}
	if c.Timeout <= 0 {
		return errors.New("connection timeout must be positive")
	}
	return nil
}

// ConnectionManager owns the PostgreSQL connection pool
type ConnectionManager struct {
	db     *sql.DB
	config ConnectionConfig
}

// NewConnectionManager opens the pool, applies the limits and verifies connectivity
func NewConnectionManager(config ConnectionConfig) (*ConnectionManager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connection config: %w", err)
	}

	db, err := sql.Open("postgres", config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	cm, err := newConnectionManager(db, config)
	if err != nil {
		db.Close()
		return nil, err
	}
	return cm, nil
}

func newConnectionManager(db *sql.DB, config ConnectionConfig) (*ConnectionManager, error) {
	db.SetMaxOpenConns(config.MaxConns)
	db.SetMaxIdleConns(config.MinConns)
	db.SetConnMaxLifetime(config.MaxLifetime)
	db.SetConnMaxIdleTime(config.MaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &ConnectionManager{db: db, config: config}, nil
}

// DB returns the pooled connection handle
func (cm *ConnectionManager) DB() *sql.DB {
	return cm.db
}

// HealthCheck pings the database
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	if err := cm.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unhealthy: %w", err)
	}
	return nil
}

// Stats returns connection pool statistics
func (cm *ConnectionManager) Stats() sql.DBStats {
	return cm.db.Stats()
}

// Close closes the pool
func (cm *ConnectionManager) Close() error {
	if err := cm.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
