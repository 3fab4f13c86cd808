// Package bootstrap wires configuration, the Redis store and the summarizer services into runnable processes.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/target/mmk-summarizer/config"
)

// InitLogger initializes the structured logger.
func InitLogger(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig validates that at least one service is enabled and that a
// running reaper cannot fail jobs that are still queued or in flight.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}

	if len(services) == 0 {
		return errors.New("no services enabled")
	}

	if services[config.ServiceModeReaper] {
		if minAge := cfg.MinPendingMaxAge(); cfg.Reaper.PendingMaxAge < minAge {
			return fmt.Errorf(
				"REAPER_PENDING_MAX_AGE %s is below %s, the longest a queued or running job can go without an update",
				cfg.Reaper.PendingMaxAge, minAge)
		}
	}

	return nil
}

// GetEnabledServices returns the enabled service names in a stable order.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return []string{}
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		// Return empty list on error - validation will catch this
		return []string{}
	}

	enabledServices := make([]string, 0, len(services))
	for _, mode := range config.ValidServiceModes() {
		if services[mode] {
			enabledServices = append(enabledServices, string(mode))
		}
	}

	return enabledServices
}
