package config

import (
	"log/slog"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - redis.go: Shared job store configuration
//   - http.go: HTTP server configuration
//   - services.go: Service mode, worker pool and reaper configuration
//   - pipeline.go: Content fetching and summarizer configuration
//   - observability.go: Metrics configuration
type AppConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Shared job store
	Redis RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http"`

	// Worker pool configuration
	Worker WorkerConfig

	// Pipeline collaborators
	Content    ContentConfig
	Summarizer SummarizerConfig

	// Reaper configuration
	Reaper ReaperConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if _, ok := logLevels[c.LogLevel]; !ok {
		c.LogLevel = "info"
	}

	c.Redis.Sanitize()
	c.HTTP.Sanitize()
	c.Worker.Sanitize()
	c.Content.Sanitize()
	c.Summarizer.Sanitize()
	c.Reaper.Sanitize()
	c.Observability.Sanitize()
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel returns the configured log level.
func (c *AppConfig) SlogLevel() slog.Level {
	if lvl, ok := logLevels[strings.ToLower(strings.TrimSpace(c.LogLevel))]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

// IsHTTPServerEnabled returns true if the HTTP server and its worker pool are enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeHTTP]
}

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[ServiceModeReaper]
}
