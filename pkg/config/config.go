package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/crmguard/pkg/observability"
	"github.com/platinummonkey/crmguard/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Database connection pool
	Database storage.ConnectionConfig

	// Observability configuration
	Observability ObservabilityConfig

	// Security configuration
	Security SecurityConfig

	// SeedFile is the catalogue applied by the seed command when no -file flag is given
	SeedFile string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// SecurityConfig holds credential settings
type SecurityConfig struct {
	BcryptCost int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	obs, err := loadObservabilityConfig()
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg := &Config{
		Database:      loadDatabaseConfig(),
		Observability: obs,
		Security: SecurityConfig{
			BcryptCost: getEnvInt("CRM_BCRYPT_COST", bcrypt.DefaultCost),
		},
		SeedFile: getEnv("CRM_SEED_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadDatabaseConfig loads pool configuration from environment
func loadDatabaseConfig() storage.ConnectionConfig {
	cfg := storage.DefaultConnectionConfig()

	cfg.URL = getEnv("CRM_DATABASE_URL", "")
	if maxConns := getEnvInt("CRM_DB_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("CRM_DB_MIN_CONNS", -1); minConns >= 0 {
		cfg.MinConns = minConns
	}
	cfg.Timeout = getEnvDuration("CRM_DB_TIMEOUT", cfg.Timeout)
	cfg.MaxLifetime = getEnvDuration("CRM_DB_MAX_LIFETIME", cfg.MaxLifetime)
	cfg.MaxIdleTime = getEnvDuration("CRM_DB_MAX_IDLE_TIME", cfg.MaxIdleTime)

	return cfg
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() (ObservabilityConfig, error) {
	level, err := observability.ParseLogLevel(getEnv("CRM_LOG_LEVEL", "info"))
	if err != nil {
		return ObservabilityConfig{}, err
	}

	return ObservabilityConfig{
		LogLevel:       level,
		MetricsEnabled: getEnvBool("CRM_METRICS_ENABLED", true),
	}, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return err
	}

	if c.Security.BcryptCost < bcrypt.MinCost || c.Security.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); err != nil {
			return fmt.Errorf("seed file is not readable: %w", err)
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
