package database

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/codeready-toolchain/docfiler/pkg/config"
)

// envDefault pairs an environment variable with the value it takes when unset.
type envDefault struct {
	key      string
	fallback string
}

var (
	defaultMaxOpenConns    = envDefault{"DB_MAX_OPEN_CONNS", "25"}
	defaultMaxIdleConns    = envDefault{"DB_MAX_IDLE_CONNS", "10"}
	defaultConnMaxLifetime = envDefault{"DB_CONN_MAX_LIFETIME", "1h"}
	defaultConnMaxIdleTime = envDefault{"DB_CONN_MAX_IDLE_TIME", "15m"}
)

// LoadConfigFromEnv builds a Config from DB_* environment variables,
// falling back to fixed pool defaults (25 open, 10 idle, 1h lifetime, 15m
// idle time) when a pool variable is unset. Returns a *config.LoadError if a
// numeric or duration variable does not parse, and a *config.ValidationError
// from Validate if the result is unusable.
func LoadConfigFromEnv() (Config, error) {
	port, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432"))
	if err != nil {
		return Config{}, config.NewLoadError("DB_PORT", err)
	}

	maxOpen, err := strconv.Atoi(getEnvOrDefault(defaultMaxOpenConns.key, defaultMaxOpenConns.fallback))
	if err != nil {
		return Config{}, config.NewLoadError(defaultMaxOpenConns.key, err)
	}
	maxIdle, err := strconv.Atoi(getEnvOrDefault(defaultMaxIdleConns.key, defaultMaxIdleConns.fallback))
	if err != nil {
		return Config{}, config.NewLoadError(defaultMaxIdleConns.key, err)
	}

	maxLifetime, err := time.ParseDuration(getEnvOrDefault(defaultConnMaxLifetime.key, defaultConnMaxLifetime.fallback))
	if err != nil {
		return Config{}, config.NewLoadError(defaultConnMaxLifetime.key, err)
	}
	maxIdleTime, err := time.ParseDuration(getEnvOrDefault(defaultConnMaxIdleTime.key, defaultConnMaxIdleTime.fallback))
	if err != nil {
		return Config{}, config.NewLoadError(defaultConnMaxIdleTime.key, err)
	}

	cfg := Config{
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("DB_USER", "docfiler"),
		Password:        os.Getenv("DB_PASSWORD"),
		Database:        getEnvOrDefault("DB_NAME", "docfiler"),
		SSLMode:         getEnvOrDefault("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: maxLifetime,
		ConnMaxIdleTime: maxIdleTime,
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first configuration problem found, wrapped as a
// *config.ValidationError. (pkg/config.OrchestratorConfig.Validate returns
// plain fmt.Errorf errors instead.)
func (c Config) Validate() error {
	if c.Password == "" {
		return config.NewValidationError("database", c.Database, "password", fmt.Errorf("DB_PASSWORD is required"))
	}
	if c.MaxOpenConns < 1 {
		return config.NewValidationError("database", c.Database, "max_open_conns",
			fmt.Errorf("must be at least 1, got %d", c.MaxOpenConns))
	}
	if c.MaxIdleConns < 0 {
		return config.NewValidationError("database", c.Database, "max_idle_conns",
			fmt.Errorf("cannot be negative, got %d", c.MaxIdleConns))
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return config.NewValidationError("database", c.Database, "max_idle_conns",
			fmt.Errorf("%d exceeds max_open_conns %d", c.MaxIdleConns, c.MaxOpenConns))
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
