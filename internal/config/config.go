// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	LogLevel  string
	LogPretty bool
	Port      int
	DevMode   bool

	// SolverRegistryFile points at a YAML solver registry. Empty selects
	// the built-in registry.
	SolverRegistryFile   string
	SolverAttemptTimeout time.Duration // 0 disables the per-attempt limit

	DefaultAlpha float64
	DefaultKappa float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	timeout, err := getEnvAsDuration("SOLVER_ATTEMPT_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	alpha, err := getEnvAsFloat("DEFAULT_ALPHA", 0.05)
	if err != nil {
		return nil, err
	}
	kappa, err := getEnvAsFloat("DEFAULT_KAPPA", 0.3)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogPretty:            getEnvAsBool("LOG_PRETTY", false),
		Port:                 getEnvAsInt("PORT", 8001),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		SolverRegistryFile:   getEnv("SOLVER_REGISTRY_FILE", ""),
		SolverAttemptTimeout: timeout,
		DefaultAlpha:         alpha,
		DefaultKappa:         kappa,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be in 1..65535, got %d", c.Port)
	}
	if c.SolverAttemptTimeout < 0 {
		return fmt.Errorf("SOLVER_ATTEMPT_TIMEOUT must not be negative, got %s", c.SolverAttemptTimeout)
	}
	if !(c.DefaultAlpha > 0 && c.DefaultAlpha < 1) {
		return fmt.Errorf("DEFAULT_ALPHA must lie in (0, 1), got %v", c.DefaultAlpha)
	}
	if !(c.DefaultKappa > 0 && c.DefaultKappa < 1) {
		return fmt.Errorf("DEFAULT_KAPPA must lie in (0, 1), got %v", c.DefaultKappa)
	}
	if c.SolverRegistryFile != "" {
		if _, err := os.Stat(c.SolverRegistryFile); err != nil {
			return fmt.Errorf("SOLVER_REGISTRY_FILE: %w", err)
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
