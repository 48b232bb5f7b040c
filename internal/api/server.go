// Package api exposes a read-only HTTP view of render jobs, history, and
// telemetry for local tooling.
package api

import (
	"context"
	"log"
	"net/http"
	"time"
)

// Server wraps the HTTP listener for the read-only API.
type Server struct {
	httpServer *http.Server
	logger     *log.Logger
}

// ServerConfig carries the server dependencies.
type ServerConfig struct {
	Addr      string
	DataDir   string
	Logger    *log.Logger
	StartTime time.Time
}

// NewServer builds the HTTP server around the API router.
func NewServer(cfg ServerConfig) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      NewRouter(cfg),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	if s.logger != nil {
		s.logger.Printf("serving api on %s", s.httpServer.Addr)
	}
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.logger != nil {
		s.logger.Printf("shutting down api server")
	}
	return s.httpServer.Shutdown(ctx)
}

// Addr reports the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
