package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// TMDB (poster lookups). An empty key disables poster resolution.
	TMDBAPIKey         string
	TMDBBaseURL        string
	TMDBImageBaseURL   string
	TMDBTimeoutSeconds int // Per-request timeout (default: 10)

	// Posters
	PosterCacheMinutes      int    // How long a lookup result is reused (default: 60)
	PosterLookupConcurrency int    // Concurrent lookups per movie list (default: 4)
	PosterBackfillSchedule  string // Cron spec for the poster backfill sweep

	// Sessions
	SessionIdleMinutes      int // Idle client sessions are signed out after this (default: 120)
	SignInAttemptsPerMinute int // Failed sign-ins allowed per email per minute (default: 5)

	// Server
	ServerPort string

	// Paths
	DatabaseFile string // $CONFIG_DIR/cinemaprompt.db

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	viper.SetDefault("TMDB_BASE_URL", "https://api.themoviedb.org/3")
	viper.SetDefault("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p/w500")
	viper.SetDefault("TMDB_TIMEOUT_SECONDS", 10)
	viper.SetDefault("POSTER_CACHE_MINUTES", 60)
	viper.SetDefault("POSTER_LOOKUP_CONCURRENCY", 4)
	viper.SetDefault("POSTER_BACKFILL_SCHEDULE", "0 */6 * * *")
	viper.SetDefault("SESSION_IDLE_MINUTES", 120)
	viper.SetDefault("SIGNIN_ATTEMPTS_PER_MINUTE", 5)
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "cinemaprompt")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		// TMDB
		TMDBAPIKey:         viper.GetString("TMDB_API_KEY"),
		TMDBBaseURL:        viper.GetString("TMDB_BASE_URL"),
		TMDBImageBaseURL:   viper.GetString("TMDB_IMAGE_BASE_URL"),
		TMDBTimeoutSeconds: viper.GetInt("TMDB_TIMEOUT_SECONDS"),

		// Posters
		PosterCacheMinutes:      viper.GetInt("POSTER_CACHE_MINUTES"),
		PosterLookupConcurrency: viper.GetInt("POSTER_LOOKUP_CONCURRENCY"),
		PosterBackfillSchedule:  viper.GetString("POSTER_BACKFILL_SCHEDULE"),

		// Sessions
		SessionIdleMinutes:      viper.GetInt("SESSION_IDLE_MINUTES"),
		SignInAttemptsPerMinute: viper.GetInt("SIGNIN_ATTEMPTS_PER_MINUTE"),

		// Server
		ServerPort: viper.GetString("SERVER_PORT"),

		// Paths
		DatabaseFile: filepath.Join(configDir, "cinemaprompt.db"),

		// Logging
		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if config.TMDBTimeoutSeconds < 1 {
		return nil, fmt.Errorf("TMDB_TIMEOUT_SECONDS must be at least 1")
	}
	if config.PosterLookupConcurrency < 1 {
		return nil, fmt.Errorf("POSTER_LOOKUP_CONCURRENCY must be at least 1")
	}
	if config.SessionIdleMinutes < 1 {
		return nil, fmt.Errorf("SESSION_IDLE_MINUTES must be at least 1")
	}
	if config.SignInAttemptsPerMinute < 1 {
		return nil, fmt.Errorf("SIGNIN_ATTEMPTS_PER_MINUTE must be at least 1")
	}

	return config, nil
}
