package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/recruitx/recruitx/internal/observability"
)

type RouterDeps struct {
	Webhooks   WebhookDeps
	Management ManagementDeps
	Metrics    *observability.Metrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
}

// NewRouter composes the health, metrics, webhook and management routes.
// Everything except /health and /metrics lives under /api/v1.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(instrument(deps.Metrics))

	r.Get("/health", handleHealth)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) { webhookRoutes(r, deps.Webhooks) })
		r.Group(func(r chi.Router) { managementRoutes(r, deps.Management) })
	})
	return r
}

// instrument records the latency of every request by route pattern.
func instrument(m *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.HTTPRequest(r.Method, route, strconv.Itoa(status), time.Since(start))
		})
	}
}
