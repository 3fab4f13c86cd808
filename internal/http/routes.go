package httpx

import (
	"log/slog"
	"net/http"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Documents DocumentService
	// Health backs /healthz. Nil reports ready unconditionally.
	Health HealthCheck
	Logger *slog.Logger // Optional: logger for request failures
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	documentHandlers := &DocumentHandlers{Svc: services.Documents, Logger: services.Logger}
	registerDocumentRoutes(mux, documentHandlers)

	mux.Handle("GET /health", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /health", http.HandlerFunc(healthHandler))
	readiness := readinessHandler(services.Health, services.Logger)
	mux.Handle("GET /healthz", readiness)
	mux.Handle("HEAD /healthz", readiness)
	mux.Handle("GET /{$}", http.HandlerFunc(rootHandler))

	return mux
}

// registerDocumentRoutes accepts each path with and without the trailing slash.
func registerDocumentRoutes(mux *http.ServeMux, h *DocumentHandlers) {
	mux.HandleFunc("POST /documents", h.CreateDocument)
	mux.HandleFunc("POST /documents/{$}", h.CreateDocument)
	mux.HandleFunc("GET /documents/{id}", h.GetDocument)
	mux.HandleFunc("GET /documents/{id}/{$}", h.GetDocument)
}
