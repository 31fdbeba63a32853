package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/amaumene/cinemaprompt/internal/api"
	"github.com/amaumene/cinemaprompt/internal/config"
	"github.com/amaumene/cinemaprompt/internal/controllers"
	"github.com/amaumene/cinemaprompt/internal/models"
	"github.com/amaumene/cinemaprompt/internal/scheduler"
	"github.com/amaumene/cinemaprompt/internal/services/identity"
	"github.com/amaumene/cinemaprompt/internal/services/moviestore"
	"github.com/amaumene/cinemaprompt/internal/services/tmdb"
	"github.com/amaumene/cinemaprompt/internal/utils"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the poster backfill job",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting CinemaPrompt")
	logger.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Info("Configuration loaded")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized")

	// 4. Initialize services
	store := moviestore.NewAdapter(db, logger)
	provider := identity.NewProvider(cfg, db, logger)
	posters := tmdb.NewClient(cfg, logger)
	logger.Info("Services initialized")

	// 5. Initialize controllers
	idle := time.Duration(cfg.SessionIdleMinutes) * time.Minute
	registry := controllers.NewSessionRegistry(provider, store, posters, cfg.PosterLookupConcurrency, idle, logger)
	defer registry.Close()
	backfillCtrl := controllers.NewPosterBackfillController(provider, store, posters, logger)
	logger.Info("Controllers initialized")

	// 6. Initialize scheduler
	sched := scheduler.NewScheduler(backfillCtrl, cfg.PosterBackfillSchedule, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 7. Initialize HTTP server
	server := api.NewServer(cfg, registry, provider, logger)

	// Start server in goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 8. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("CinemaPrompt is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("CinemaPrompt stopped")
	return nil
}
