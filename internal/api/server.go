package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amaumene/cinemaprompt/internal/api/handlers"
	"github.com/amaumene/cinemaprompt/internal/api/middleware"
	"github.com/amaumene/cinemaprompt/internal/config"
	"github.com/amaumene/cinemaprompt/internal/controllers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server
type Server struct {
	server   *http.Server
	registry *controllers.SessionRegistry
	profiles handlers.ProfileReader
	logger   *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, registry *controllers.SessionRegistry, profiles handlers.ProfileReader, logger *logrus.Logger) *Server {
	s := &Server{
		registry: registry,
		profiles: profiles,
		logger:   logger,
	}

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler wrapped in request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.setupRoutes(mux)
	return middleware.Logging(mux, s.logger)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	// Health check and metrics
	healthHandler := handlers.NewHealthHandler(s.registry, s.logger)
	mux.HandleFunc("/health", healthHandler.ServeHTTP)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Authentication
	authHandler := handlers.NewAuthHandler(s.registry, s.profiles, s.logger)
	mux.HandleFunc("POST /api/auth/signup", authHandler.SignUp)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/auth/me", authHandler.Me())

	// Movie list
	moviesHandler := handlers.NewMoviesHandler(s.registry, s.logger)
	mux.HandleFunc("GET /api/movies", moviesHandler.List())
	mux.HandleFunc("POST /api/movies", moviesHandler.Add())
	mux.HandleFunc("POST /api/movies/{id}/favorite", moviesHandler.ToggleFavorite())
	mux.HandleFunc("DELETE /api/movies/{id}", moviesHandler.Delete())

	// Prompt, stats and live updates
	mux.Handle("POST /api/prompt", handlers.NewPromptHandler(s.registry, s.logger))
	mux.Handle("GET /api/stats", handlers.NewStatsHandler(s.registry, s.logger))
	mux.Handle("GET /api/live", handlers.NewLiveHandler(s.registry, s.logger))
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
