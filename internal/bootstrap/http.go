package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/mmk-summarizer/config"
	httpx "github.com/target/mmk-summarizer/internal/http"
)

// HTTPServerConfig contains configuration for HTTP server.
type HTTPServerConfig struct {
	HTTP     config.HTTPConfig
	Services ServiceContainer
	Logger   *slog.Logger
	// ErrCh receives a listen failure. Optional.
	ErrCh chan<- error
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler := buildHTTPHandler(logger, cfg.Services)
	return startServer(serverParams{
		logger:  logger,
		handler: handler,
		http:    cfg.HTTP,
		errCh:   cfg.ErrCh,
	})
}

func buildHTTPHandler(logger *slog.Logger, services ServiceContainer) http.Handler {
	routerServices := httpx.RouterServices{Logger: logger}
	if services.Jobs != nil {
		routerServices.Documents = services.Jobs
	}
	if services.Store != nil {
		routerServices.Health = services.Store.Health
	}

	// Order: Recover -> Logging -> Router
	h := httpx.NewRouter(routerServices)
	h = httpx.Logging(logger)(h)
	h = httpx.Recover(logger)(h)

	return h
}

type serverParams struct {
	logger  *slog.Logger
	handler http.Handler
	http    config.HTTPConfig
	errCh   chan<- error
}

func startServer(p serverParams) *http.Server {
	addr := p.http.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8000"
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           p.handler,
		ReadTimeout:       p.http.ReadTimeout,
		ReadHeaderTimeout: p.http.ReadTimeout,
		WriteTimeout:      p.http.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		p.logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("HTTP server failed", "error", err)
			if p.errCh != nil {
				select {
				case p.errCh <- err:
				default:
				}
			}
		}
	}()

	return server
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}

	if logger != nil {
		logger.InfoContext(ctx, "shutting down HTTP server")
	}

	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	if logger != nil {
		logger.InfoContext(ctx, "HTTP server stopped")
	}

	return nil
}
