package config

import (
	"os"
	"strconv"

	"histfit/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Fit      FitConfig
	Scan     ScanConfig
}

// DatabaseConfig holds database connection settings. An empty URL selects
// the in-memory result store.
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// FitConfig holds optimizer settings
type FitConfig struct {
	MaxIterations int
	Tolerance     float64
}

// ScanConfig holds profile-scan settings
type ScanConfig struct {
	Parallelism int
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL:     getEnvOrDefault("DATABASE_URL", ""),
			SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
		},
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8080"),
		},
		Fit: FitConfig{
			MaxIterations: getEnvIntOrDefault("FIT_MAX_ITERATIONS", 10000),
			Tolerance:     getEnvFloatOrDefault("FIT_TOLERANCE", 1e-10),
		},
		Scan: ScanConfig{
			Parallelism: getEnvIntOrDefault("SCAN_PARALLELISM", 4),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func validateConfig(config *Config) error {
	if config.Fit.MaxIterations <= 0 {
		return errors.ConfigInvalid("FIT_MAX_ITERATIONS must be positive")
	}
	if config.Fit.Tolerance <= 0 {
		return errors.ConfigInvalid("FIT_TOLERANCE must be positive")
	}
	if config.Scan.Parallelism <= 0 {
		return errors.ConfigInvalid("SCAN_PARALLELISM must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
