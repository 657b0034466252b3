// Package main is the entry point for the code debugger server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (internal/config, from environment variables)
// 2. Create dependencies (logger, database, executor, token service)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/code-debugger/internal/auth"
	"github.com/sakif/code-debugger/internal/config"
	"github.com/sakif/code-debugger/internal/executor/local"
	"github.com/sakif/code-debugger/internal/quiz"
	"github.com/sakif/code-debugger/internal/repository/sqlite"
	"github.com/sakif/code-debugger/internal/server"
	"github.com/sakif/code-debugger/internal/service"
)

func main() {
	// === 1. CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		// No logger yet: the log level and format are part of the config.
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := config.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	// === 2. DATABASE ===
	// os.MkdirAll creates the data directory if needed (like `mkdir -p`).
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		fatal(logger, "failed to create database directory", err, slog.String("dir", dbDir))
	}

	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		fatal(logger, "failed to open database", err, slog.String("path", cfg.DBPath))
	}
	// From here on the server owns db and closes it on shutdown.

	// === 3. QUESTION BANK ===
	bank, err := quiz.DefaultBank()
	if err != nil {
		db.Close()
		fatal(logger, "failed to load question bank", err)
	}

	// === 4. EXECUTOR ===
	// Programs run as host processes. A missing toolchain is not fatal: each
	// execution in that language reports the launch failure in its result.
	exec, err := local.New(cfg.Executor, local.HostPlatform{}, logger)
	if err != nil {
		db.Close()
		fatal(logger, "failed to create executor", err)
	}
	logger.Info("executor ready",
		slog.String("scratchDir", exec.ScratchDir()),
		slog.Duration("compileTimeout", cfg.Executor.CompileTimeout),
		slog.Duration("runTimeout", cfg.Executor.RunTimeout),
	)

	// === 5. SESSION TOKENS ===
	if cfg.SessionSecretGenerated {
		logger.Warn("SESSION_SECRET not set, using a random secret: sessions will not survive a restart")
	}
	tokens, err := auth.NewTokenService(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		db.Close()
		fatal(logger, "failed to create token service", err)
	}

	// === 6. CREATE AND START THE SERVER ===
	srv, err := server.New(server.Config{
		Port:          cfg.Port,
		CORSOrigins:   cfg.CORSOrigins,
		MaxConcurrent: cfg.MaxConcurrent,
		RatePerSec:    cfg.RatePerSec,
		RateBurst:     cfg.RateBurst,

		// Compile plus run, the longest a C or Java execution can take.
		ExecutionTimeout: cfg.Executor.CompileTimeout + cfg.Executor.RunTimeout,
	}, server.Deps{
		DB:       db,
		Bank:     bank,
		Executor: exec,
		Tokens:   tokens,
		SessionOptions: []service.Option{
			service.WithTimeLimit(cfg.SessionTimeLimit),
		},
	}, logger)
	if err != nil {
		db.Close()
		fatal(logger, "failed to create server", err)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		fatal(logger, "server error", err)
	}
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	logger.Error(msg, append(attrs, slog.String("error", err.Error()))...)
	os.Exit(1)
}
