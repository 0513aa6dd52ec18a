// Package cli provides common CLI initialization utilities shared by the
// server binary: env file loading, logger setup, config validation, and
// backend selection.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"dispensa/internal/config"
	"dispensa/internal/log"
	"dispensa/internal/storage"
	"dispensa/internal/storage/memory"
	"dispensa/internal/storage/sqlite"
)

// SetupLogger initializes structured logging and sets the default logger.
func SetupLogger() *slog.Logger {
	return log.Setup()
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitStore opens the configured data backend.
// Returns the store or exits the process on failure.
func InitStore(logger *slog.Logger, cfg *config.Config) storage.Store {
	switch cfg.DataBackend {
	case "memory":
		logger.Info("Using in-memory store", "backend", cfg.DataBackend)
		return memory.New()
	default:
		store, err := sqlite.New(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite store", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		logger.Info("Using SQLite store", "path", cfg.SQLiteDBPath)
		return store
	}
}

