// Package main is the entry point for the running club server.
//
// main stays minimal: load config, create the logger, hand everything to
// internal/server. All actual wiring lives there.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sakif/runclub/internal/config"
	"github.com/sakif/runclub/internal/server"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// A local .env supplies config in development; in production the real
	// environment does. Missing .env is not an error.
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded configuration from .env")
	}

	cfg, err := config.FromEnv()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// The database and media directories are created on demand so a fresh
	// checkout runs without setup.
	for _, dir := range []string{filepath.Dir(cfg.DBPath), cfg.MediaDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("failed to create data directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
