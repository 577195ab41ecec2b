// Package main is the entry point for the deskkit server: a task board,
// local accounts and a desk calculator behind one HTTP API.
//
// main only reads configuration, builds the logger and starts the server.
// Everything else lives in internal/.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/deskkit/internal/auth"
	"github.com/sakif/deskkit/internal/config"
	"github.com/sakif/deskkit/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// flags < config file < explicit flags < environment
	opts, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(2)
	}

	// === 2. SET UP LOGGING ===
	// Validate already checked the level.
	level, _ := opts.Level()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	// === 3. RESOLVE PATHS ===
	templateDir, err := filepath.Abs(opts.TemplateDir)
	if err != nil {
		logger.Error("failed to resolve template directory",
			slog.String("dir", opts.TemplateDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// The data directory is created on first run, like `mkdir -p`.
	if opts.DBPath != ":memory:" {
		dbDir := filepath.Dir(opts.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// Validate already checked the scheme.
	scheme, _ := auth.ParseScheme(opts.PasswordScheme)

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(server.Config{
		Port:           opts.Port,
		TemplateDir:    templateDir,
		DBPath:         opts.DBPath,
		JWTSecret:      opts.JWTSecret,
		PasswordScheme: scheme,
		BcryptCost:     opts.BcryptCost,
		SecureCookie:   opts.SecureCookie,
	}, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
