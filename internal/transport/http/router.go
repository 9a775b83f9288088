package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cohort/internal/platform/middleware"
)

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// RouterDeps bundles everything the router wires together.
type RouterDeps struct {
	Handler   *Handler
	Validator middleware.TokenValidator
	Logger    *slog.Logger
	Checks    map[string]HealthCheck
}

// NewRouter builds the full route tree. Health and metrics stay outside the
// auth boundary; everything under /v1 requires a bearer token.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))

	r.Get("/healthz", healthHandler(deps.Checks))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth(deps.Validator, deps.Logger))

		r.Route("/volunteers", func(r chi.Router) {
			r.Post("/", deps.Handler.createVolunteer)
			r.Get("/", deps.Handler.listVolunteers)
			r.Route("/{volunteerID}", func(r chi.Router) {
				r.Get("/", deps.Handler.getVolunteer)
				r.Patch("/", deps.Handler.updateVolunteer)
				r.Post("/subject-code", deps.Handler.ensureSubjectCode)
				r.Post("/transition", deps.Handler.applyTransition)
				r.Get("/history", deps.Handler.volunteerHistory)
			})
		})

		r.Route("/audit", func(r chi.Router) {
			r.Get("/recent", deps.Handler.recentAudit)
			r.Get("/actor/{actorID}", deps.Handler.actorAudit)
		})
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				report[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}
		writeJSON(w, status, report)
	}
}
