// Package server is the externally visible HTTP surface: it parses Ollama
// wire requests into the canonical shape, selects a backend by model
// prefix, invokes it, and serializes the result back — emulating streaming
// when the client asks for it.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aibridge/internal/backend"
	"aibridge/internal/config"
	"aibridge/internal/models"
	"aibridge/internal/probe"
)

// Version is reported on GET /api/version for clients that probe it.
const Version = "0.1.0"

// Server is the bridge HTTP server. Its configuration, invoker set, and
// readiness report are frozen at construction and shared without locking
// across concurrently handled requests.
type Server struct {
	cfg        *config.Config
	invokers   map[models.Provider]backend.Invoker
	report     probe.Report
	httpServer *http.Server
}

// New creates a server with all routes registered.
func New(cfg *config.Config, invokers map[models.Provider]backend.Invoker, report probe.Report) *Server {
	s := &Server{
		cfg:      cfg,
		invokers: invokers,
		report:   report,
	}

	mux := http.NewServeMux()

	// Ollama-compatible routes
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/tags", s.handleTags)
	mux.HandleFunc("GET /api/version", s.handleVersion)

	// Health and observability
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	handler := requestIDMiddleware(accessLogMiddleware(metricsMiddleware(mux)))

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// Generous write timeout: a synchronous backend call plus emulated
		// streaming can legitimately take minutes.
		WriteTimeout: 600 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler exposes the full middleware-wrapped handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe starts the server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
