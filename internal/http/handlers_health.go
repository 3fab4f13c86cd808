package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	healthResponse      = `{"status":"ok"}`
	unavailableResponse = `{"status":"unavailable"}`
	rootResponse        = `{"message":"LLM Summariser Service API"}`

	readinessTimeout = 2 * time.Second
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// healthHandler returns a simple 200 OK status for liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeStatic(w, r, http.StatusOK, healthResponse)
}

// rootHandler identifies the service.
func rootHandler(w http.ResponseWriter, r *http.Request) {
	writeStatic(w, r, http.StatusOK, rootResponse)
}

// readinessHandler returns 200 when check succeeds and 503 otherwise.
// A nil check always reports ready.
func readinessHandler(check HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				if logger != nil {
					logger.WarnContext(r.Context(), "readiness check failed", "error", err)
				}
				writeStatic(w, r, http.StatusServiceUnavailable, unavailableResponse)
				return
			}
		}
		writeStatic(w, r, http.StatusOK, healthResponse)
	}
}

func writeStatic(w http.ResponseWriter, r *http.Request, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, body); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}
