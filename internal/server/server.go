// Package server exposes the action dispatcher over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"token-economy/internal/config"
	"token-economy/internal/handler"
)

const healthTimeout = 2 * time.Second

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds everything the server routes to.
type Dependencies struct {
	Config     config.ServerConfig
	Auth       *Authenticator
	Dispatcher http.Handler
	Health     HealthChecker
}

// Server wraps the HTTP server and its router.
type Server struct {
	cfg    config.ServerConfig
	deps   *Dependencies
	router *mux.Router
	http   *http.Server
}

// New creates a Server with middleware and routes registered.
func New(deps *Dependencies) (*Server, error) {
	if deps.Auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	s := &Server{
		cfg:    deps.Config,
		deps:   deps,
		router: mux.NewRouter(),
	}

	s.registerMiddleware()
	s.registerRoutes()

	s.http = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      otelhttp.NewHandler(s.router, "token-economy"),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	return s, nil
}

// registerMiddleware registers middleware shared by every route.
func (s *Server) registerMiddleware() {
	s.router.Use(RequestIDMiddleware())
	s.router.Use(LoggingMiddleware())
	s.router.Use(RecoveryMiddleware())
	s.router.Use(CORSMiddleware())
	s.router.Use(LimitMiddleware(s.cfg.MaxBodyBytes, s.cfg.RequestTimeout))
}

// registerRoutes registers the action endpoint and the health check.
func (s *Server) registerRoutes() {
	path := s.cfg.Path
	if path == "" {
		path = "/"
	}

	s.router.Handle(path, AuthMiddleware(s.deps.Auth)(s.deps.Dispatcher)).
		Methods(http.MethodPost, http.MethodOptions)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.deps.Health.HealthCheck(ctx); err != nil {
			log.Warn().Err(err).Msg("Health check failed")
			handler.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	handler.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until Stop is called. It returns nil after a clean stop.
func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.Addr).Str("path", s.cfg.Path).Msg("HTTP server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
