// Package server exposes the engine over a small JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/sonicagent/engine/internal/services"
)

// Server is the HTTP API server
type Server struct {
	router *chi.Mux
	http   *http.Server
	agent  *services.AgentService
	log    zerolog.Logger
}

// New creates a new API server
func New(agent *services.AgentService, port int, log zerolog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		agent:  agent,
		log:    log.With().Str("component", "server").Logger(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(120 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.routes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second,
	}

	return s
}

func (s *Server) routes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/portfolio/{wallet}", s.handlePortfolio)
		r.Post("/rebalance/{wallet}", s.handleRebalance)
		r.Get("/recommendations/{wallet}", s.handleRecommendations)
		r.Post("/recommendations/{id}/execute", s.handleExecuteRecommendation)
		r.Get("/trades/{wallet}", s.handleTrades)
	})
}

// Router returns the underlying router, used by tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start listens and serves until the server is shut down
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
