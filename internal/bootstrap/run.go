package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/target/mmk-summarizer/config"
)

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for a background service to stop.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the worker pool and the HTTP server if enabled.
// Canceling the service context does not stop the pool; gracefulStop drains it.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) (*http.Server, error) {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil, nil
	}
	if pool := deps.cfg.Services.Pool; pool != nil {
		if err := pool.Start(deps.ctx); err != nil {
			return nil, fmt.Errorf("start worker pool: %w", err)
		}
	}
	return StartHTTPServer(&HTTPServerConfig{
		HTTP:     deps.cfg.Config.HTTP,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
		ErrCh:    deps.errCh,
	}), nil
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name, "error", errMsg)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil || deps.cfg.Services.Reaper == nil {
				return errors.New("reaper service is not configured")
			}
			return deps.cfg.Services.Reaper.Run(ctx)
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newReaperBackgroundService(deps),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	return runServices(cfg, quit)
}

func runServices(cfg *ServiceOrchestrationConfig, quit <-chan os.Signal) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	deps := &serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	}
	server, err := startHTTPServerIfEnabled(deps)
	if err != nil {
		return err
	}
	backgrounds := startBackgroundServices(deps, buildBackgroundServices(deps))

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		quit:        quit,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  server,
		services:    cfg.Services,
		appConfig:   cfg.Config,
		logger:      logger,
		backgrounds: backgrounds,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	quit        <-chan os.Signal
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	services    ServiceContainer
	appConfig   *config.AppConfig
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	select {
	case <-cfg.quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop stops intake first, then drains the worker pool, then waits for background services.
func gracefulStop(cfg shutdownConfig) error {
	var errs []error

	if cfg.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.appConfig.HTTP.ShutdownTimeout)
		if err := ShutdownHTTPServer(shutdownCtx, cfg.httpServer, cfg.logger); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
		}
		cancel()
	}

	if cfg.services.Pool != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.appConfig.Worker.ShutdownTimeout)
		if err := cfg.services.Pool.Shutdown(drainCtx); err != nil {
			errs = append(errs, err)
		}
		cancel()
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	if err := cfg.services.Observability.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close metrics client: %w", err))
	}

	return errors.Join(errs...)
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
