package server

import (
	"github.com/go-chi/chi/v5"

	"github.com/sitelens/sitelens/internal/server/handlers"
)

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes() {
	s.router.Get("/health", s.health.HealthHandler)
	s.router.Get("/health/live", s.health.LivenessHandler)
	s.router.Get("/health/ready", s.health.ReadinessHandler)

	s.router.Get("/version", handlers.VersionHandler)

	s.router.Route("/v1", func(r chi.Router) {
		r.Route("/audits", func(r chi.Router) {
			r.Post("/", s.audits.Create)
			r.Get("/", s.audits.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.audits.Get)
				r.Get("/progress", s.audits.Progress)
				r.Get("/checks", s.audits.Checks)
				r.Post("/stop", s.audits.Stop)
				r.Post("/resume", s.audits.Resume)
			})
		})

		r.Route("/reports", func(r chi.Router) {
			r.Post("/", s.reports.Create)
			r.Get("/{id}", s.reports.Get)
		})
	})
}
