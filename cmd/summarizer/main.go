package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/target/mmk-summarizer/config"
	"github.com/target/mmk-summarizer/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger(slog.LevelInfo)
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	if level := cfg.SlogLevel(); level != slog.LevelInfo {
		logger = bootstrap.InitLogger(level)
	}

	// Log startup info
	logStartupInfo(ctx, logger, &cfg)

	cfgPtr := &cfg

	// Validate configuration
	if err = bootstrap.ValidateServiceConfig(cfgPtr); err != nil {
		return err
	}

	// Initialize infrastructure
	redisClient, err := bootstrap.ConnectRedis(ctx, bootstrap.RedisConnectConfig{
		Redis:  cfg.Redis,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := redisClient.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close redis failed", "error", cerr)
		}
	}()

	// Initialize and run services
	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      cfgPtr,
		RedisClient: redisClient,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:   cfgPtr,
		Services: services,
		Logger:   logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	enabledServices := bootstrap.GetEnabledServices(cfg)
	logger.InfoContext(ctx, "starting summarizer service",
		"addr", cfg.HTTP.Addr,
		"model", cfg.Summarizer.Model,
		"ollama_host", cfg.Summarizer.Host,
		"workers", cfg.Worker.Concurrency,
		"queue_size", cfg.Worker.QueueSize,
		"enabled_services", enabledServices)
}
