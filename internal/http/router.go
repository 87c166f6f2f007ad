// Package httpapi assembles the HTTP surface: tracking endpoints, archive
// operations, health, and metrics. Transport concerns stay here so domain
// packages remain HTTP-free.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rumbo/internal/archive"
	trackinghandler "rumbo/internal/tracking/handler"
	"rumbo/pkg/platform/httputil"
	"rumbo/pkg/platform/middleware/requestmeta"
)

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

// NewRouter wires all endpoints. The archive handler is nil on processes
// that are not the designated archive worker.
func NewRouter(tracking *trackinghandler.Handler, archiveHandler *archive.Handler, checks map[string]HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(requestmeta.RequestID)
	r.Use(requestmeta.RequestTime)

	r.Get("/healthz", handleHealth(checks))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		tracking.Register(api)
		if archiveHandler != nil {
			archiveHandler.Register(api)
		}
	})
	return r
}

func handleHealth(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		body := make(map[string]string, len(checks)+1)
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body[name] = "down"
				continue
			}
			body[name] = "up"
		}
		if status == http.StatusOK {
			body["status"] = "ok"
		} else {
			body["status"] = "degraded"
		}
		httputil.WriteJSON(w, status, body)
	}
}
