// Package server wires the chi router, middleware chain, and handlers
// into the sitelens HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sitelens/sitelens/internal/config"
	"github.com/sitelens/sitelens/internal/core/engine"
	"github.com/sitelens/sitelens/internal/core/report"
	"github.com/sitelens/sitelens/internal/core/store"
	apperrors "github.com/sitelens/sitelens/internal/errors"
	"github.com/sitelens/sitelens/internal/server/handlers"
	servermw "github.com/sitelens/sitelens/internal/server/middleware"
)

// Server is the sitelens HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    config.ServerConfig
	logger *zap.Logger

	audits  *handlers.AuditHandlers
	reports *handlers.ReportHandlers
	health  *handlers.HealthManager
}

// New assembles the router and handlers around the engine and store.
func New(cfg config.ServerConfig, eng *engine.Engine, st *store.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)

	// Order matters: request id first for correlation, recovery outermost
	// around the handlers.
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestLogger)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	health := handlers.NewHealthManager(handlers.AppVersion)
	if st != nil {
		health.RegisterChecker("store", st)
	}

	s := &Server{
		router:  r,
		cfg:     cfg,
		logger:  logger,
		audits:  &handlers.AuditHandlers{Engine: eng, Store: st},
		reports: &handlers.ReportHandlers{Store: st, Combiner: &report.Combiner{}},
		health:  health,
	}
	s.registerRoutes()
	return s
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	s.logger.Info("starting HTTP server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
