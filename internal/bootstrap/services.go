package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-summarizer/config"
	"github.com/target/mmk-summarizer/internal/adapters/content"
	"github.com/target/mmk-summarizer/internal/adapters/llm"
	"github.com/target/mmk-summarizer/internal/adapters/workerpool"
	"github.com/target/mmk-summarizer/internal/core"
	"github.com/target/mmk-summarizer/internal/data"
	"github.com/target/mmk-summarizer/internal/observability/statsd"
	"github.com/target/mmk-summarizer/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Store         core.JobStore
	Jobs          *service.JobService
	Lifecycle     *service.LifecycleManager
	Pool          *workerpool.Pool
	Reaper        *service.ReaperService
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// Sink returns the metrics sink, or nil when metrics are disabled.
func (o ObservabilityContainer) Sink() statsd.Sink {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink
}

// Close releases the metrics connection.
func (o ObservabilityContainer) Close() error {
	return o.MetricsSink.Close()
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	// Store overrides the Redis-backed store; tests pass an in-memory one.
	Store       core.JobStore
	RedisClient redis.UniversalClient
	// Fetcher and Summarizer override the network adapters.
	Fetcher    core.ContentFetcher
	Summarizer core.Summarizer
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:   metricsSink,
		MetricsConfig: cfg.Metrics,
	}
}

func buildStore(deps *ServiceDeps) (core.JobStore, error) {
	if deps.Store != nil {
		return deps.Store, nil
	}
	store, err := data.NewRedisJobStore(data.RedisJobStoreOptions{
		Client:    deps.RedisClient,
		KeyPrefix: deps.Config.Redis.KeyPrefix,
		RecordTTL: deps.Config.Redis.RecordTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("build job store: %w", err)
	}
	return store, nil
}

func newFetcher(deps *ServiceDeps) core.ContentFetcher {
	if deps.Fetcher != nil {
		return deps.Fetcher
	}
	cfg := deps.Config.Content
	return content.NewFetcher(content.FetcherOptions{
		HTTPClient:   deps.HTTPClient,
		Timeout:      cfg.FetchTimeout,
		MaxBodyBytes: cfg.MaxBodyBytes,
		MaxChars:     cfg.MaxChars,
		UserAgent:    cfg.UserAgent,
		Logger:       deps.Logger,
	})
}

func newSummarizer(deps *ServiceDeps) core.Summarizer {
	if deps.Summarizer != nil {
		return deps.Summarizer
	}
	cfg := deps.Config.Summarizer
	return llm.New(llm.Options{
		Host:        cfg.Host,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxChars:    cfg.MaxChars,
		MaxWords:    cfg.MaxWords,
		MinWords:    cfg.MinWords,
		MaxRetries:  cfg.MaxRetries,
		HTTPClient:  deps.HTTPClient,
		Logger:      deps.Logger,
	})
}

// NewServices builds the store, pipeline adapters, worker pool and services from config.
// The pool is returned unstarted.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	if deps.Store == nil && deps.RedisClient == nil {
		return ServiceContainer{}, errors.New("redis client is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	deps.Logger = logger
	cfg := deps.Config

	observability := buildObservability(logger, cfg.Observability)
	sink := observability.Sink()

	store, err := buildStore(deps)
	if err != nil {
		return ServiceContainer{}, err
	}

	lifecycle, err := service.NewLifecycleManager(service.LifecycleManagerOptions{
		Store:            store,
		Fetcher:          newFetcher(deps),
		Summarizer:       newSummarizer(deps),
		FetchTimeout:     cfg.Content.FetchTimeout,
		SummarizeTimeout: cfg.Summarizer.Timeout,
		WriteTimeout:     cfg.Worker.WriteTimeout,
		Logger:           logger,
		Metrics:          sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build lifecycle manager: %w", err)
	}

	pool, err := workerpool.New(workerpool.Options{
		Handler:   lifecycle,
		Workers:   cfg.Worker.Concurrency,
		QueueSize: cfg.Worker.QueueSize,
		Logger:    logger,
		Metrics:   sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build worker pool: %w", err)
	}

	jobs, err := service.NewJobService(service.JobServiceOptions{
		Store:      store,
		Dispatcher: pool,
		Logger:     logger,
		Metrics:    sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build job service: %w", err)
	}

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Store:   store,
		Config:  cfg.Reaper,
		Logger:  logger,
		Metrics: sink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build reaper service: %w", err)
	}

	return ServiceContainer{
		Store:         store,
		Jobs:          jobs,
		Lifecycle:     lifecycle,
		Pool:          pool,
		Reaper:        reaper,
		Observability: observability,
	}, nil
}
