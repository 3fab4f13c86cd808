package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP API together with the worker pool that processes its jobs.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeReaper runs the stale-job reaper.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: http, reaper)", serviceName)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// WorkerConfig contains background worker pool configuration.
type WorkerConfig struct {
	// Concurrency is the number of jobs processed at once.
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"4"`

	// QueueSize is the number of accepted jobs that may wait for a worker.
	// Submissions beyond Concurrency+QueueSize are rejected as busy.
	QueueSize int `env:"WORKER_QUEUE_SIZE" envDefault:"64"`

	// ShutdownTimeout is how long shutdown waits for queued and running jobs before
	// canceling them.
	ShutdownTimeout time.Duration `env:"WORKER_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// WriteTimeout bounds each job record write.
	WriteTimeout time.Duration `env:"WORKER_WRITE_TIMEOUT" envDefault:"5s"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.Concurrency > 256 {
		w.Concurrency = 256
	}
	if w.QueueSize < 0 {
		w.QueueSize = 0
	}
	if w.QueueSize > 100000 {
		w.QueueSize = 100000
	}
	if w.ShutdownTimeout <= 0 {
		w.ShutdownTimeout = 15 * time.Second
	}
	if w.WriteTimeout <= 0 {
		w.WriteTimeout = 5 * time.Second
	}
}

// ReaperConfig contains stale-job reaper configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"1m"`

	// PendingMaxAge is how long a PENDING job may go without an update before it is
	// marked as failed. When the reaper runs it must be at least MinPendingMaxAge.
	PendingMaxAge time.Duration `env:"REAPER_PENDING_MAX_AGE" envDefault:"1h"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimums to prevent excessive store scans and premature failures
	if r.Interval < 10*time.Second {
		r.Interval = 10 * time.Second
	}
	if r.PendingMaxAge < 5*time.Minute {
		r.PendingMaxAge = 5 * time.Minute
	}
}

// jobRecordWrites is the number of record writes one job makes after it is accepted:
// the claim, three progress checkpoints and the terminal write.
const jobRecordWrites = 5

// MinPendingMaxAge is the longest a live job can go without an update to its record.
// A job accepted into a full pool waits for every job ahead of it, and each of those
// takes at most one fetch, one summarize and every record write.
func (c *AppConfig) MinPendingMaxAge() time.Duration {
	workers := max(c.Worker.Concurrency, 1)
	slots := workers + max(c.Worker.QueueSize, 0)
	rounds := (slots + workers - 1) / workers
	perJob := c.Content.FetchTimeout + c.Summarizer.Timeout + jobRecordWrites*c.Worker.WriteTimeout
	return time.Duration(rounds) * perJob
}
