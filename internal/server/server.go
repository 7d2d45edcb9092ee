// Package server exposes the read-only status HTTP API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/dlmmbot/internal/server/handler"
	"github.com/alanyoungcy/dlmmbot/internal/server/middleware"
)

// Config holds the HTTP server parameters.
type Config struct {
	Port   int
	APIKey string
}

// Server is the read-only status API. It never mutates bot state; all writes
// happen in the monitor and hedge scheduler.
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

// New registers routes and builds the middleware chain. The health endpoint
// stays outside the auth check so probes work without credentials.
func New(cfg Config, status *handler.StatusHandler, log *slog.Logger) *Server {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/status", status.Status)
	api.HandleFunc("GET /api/positions", status.Positions)
	api.HandleFunc("GET /api/positions/{address}/hedges", status.Hedges)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", status.Health)
	mux.Handle("/api/", middleware.Auth(cfg.APIKey)(api))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      middleware.Logging(log)(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, log: log.With("component", "server")}
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.log.Info("status server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("status server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
