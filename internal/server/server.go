// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go creates the database, question bank, executor and token service,
// and hands them over in Deps. New builds the session service and handlers
// from those and registers routes. Nothing below this package constructs
// its own dependencies.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/code-debugger/internal/auth"
	"github.com/sakif/code-debugger/internal/executor"
	"github.com/sakif/code-debugger/internal/handler"
	"github.com/sakif/code-debugger/internal/middleware"
	"github.com/sakif/code-debugger/internal/quiz"
	sqliteRepo "github.com/sakif/code-debugger/internal/repository/sqlite"
	"github.com/sakif/code-debugger/internal/service"
)

// Config holds server configuration.
type Config struct {
	Port          int
	CORSOrigins   []string
	MaxConcurrent int
	RatePerSec    float64
	RateBurst     int

	// ExecutionTimeout is the longest one execution can take: the
	// executor's compile plus run limits. The HTTP write timeout and the
	// shutdown grace period are derived from it so a slow submission is
	// never cut off mid-response.
	ExecutionTimeout time.Duration
}

// Minimums and headroom for the derived HTTP timeouts.
const (
	minWriteTimeout    = 15 * time.Second
	minShutdownTimeout = 10 * time.Second
	// timeoutHeadroom covers staging, process teardown and writing the
	// response on top of the execution itself.
	timeoutHeadroom = 10 * time.Second
)

// purgeInterval is how often sessions older than their token lifetime are
// deleted.
const purgeInterval = 10 * time.Minute

// writeTimeout is how long a handler may take to answer one request.
func (c Config) writeTimeout() time.Duration {
	return max(minWriteTimeout, c.ExecutionTimeout+timeoutHeadroom)
}

// shutdownTimeout is how long in-flight requests get after SIGINT or
// SIGTERM.
func (c Config) shutdownTimeout() time.Duration {
	return max(minShutdownTimeout, c.ExecutionTimeout+timeoutHeadroom)
}

// Deps are the long-lived components the server routes requests to.
type Deps struct {
	DB       *sqliteRepo.DB
	Bank     *quiz.Bank
	Executor executor.Executor
	Tokens   *auth.TokenService
	// SessionOptions are passed through to service.NewSessionService.
	SessionOptions []service.Option
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it after the HTTP
// server has drained, so no handler ever sees a closed database.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *middleware.Limiter

	sessions *service.SessionService

	// retention is how long a session row is kept: as long as a token for
	// it can still be valid.
	retention time.Duration
}

// New creates a new Server and registers every route.
//
// Each layer only receives what it needs:
// - The session service gets the repository interface (not the concrete sqlite.DB)
// - Handlers get services (not repositories)
func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	switch {
	case deps.DB == nil:
		return nil, errors.New("server: database is required")
	case deps.Bank == nil:
		return nil, errors.New("server: question bank is required")
	case deps.Executor == nil:
		return nil, errors.New("server: executor is required")
	case deps.Tokens == nil:
		return nil, errors.New("server: token service is required")
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     deps.DB,
		limiter: middleware.NewLimiter(middleware.LimiterConfig{
			RatePerSec:    cfg.RatePerSec,
			Burst:         cfg.RateBurst,
			MaxConcurrent: cfg.MaxConcurrent,
		}),
		sessions:  service.NewSessionService(deps.DB, deps.Bank, deps.Executor, logger, deps.SessionOptions...),
		retention: deps.Tokens.TTL(),
	}
	s.setupRoutes(deps)
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /health                     → Liveness plus database ping
// GET    /metrics                    → Prometheus scrape endpoint
// GET    /api/languages              → Languages with question counts
// GET    /api/questions/{language}   → Public questions for a language
// POST   /api/execute                → Run code, no session (rate limited)
// POST   /api/sessions               → Start a quiz session, returns a token
// GET    /api/session/question       → Current question        [token]
// POST   /api/session/submit         → Judge a fix             [token]
// POST   /api/session/run            → Run code (rate limited) [token]
// GET    /api/session/stats          → Score and time          [token]
//
// MIDDLEWARE ORDER MATTERS:
// RequestID first so every later log line carries it, RealIP before anything
// that looks at the client address (the rate limiter), Recoverer inside the
// logger so a panic is still logged as a 500.
func (s *Server) setupRoutes(deps Deps) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		// Browsers refuse credentials with a wildcard origin.
		AllowCredentials: !slices.Contains(s.config.CORSOrigins, "*"),
		MaxAge:           300,
	}))

	metaHandler := handler.NewMetaHandler(deps.Bank, deps.DB, s.logger)
	executeHandler := handler.NewExecuteHandler(deps.Executor, s.logger)
	sessionHandler := handler.NewSessionHandler(s.sessions, deps.Tokens, s.logger)

	s.router.Get("/health", metaHandler.HandleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/languages", metaHandler.HandleLanguages)
		r.Get("/questions/{language}", metaHandler.HandleQuestions)

		r.With(s.limiter.Handler).Post("/execute", executeHandler.HandleExecute)
		r.Post("/sessions", sessionHandler.HandleStart)

		r.Route("/session", func(r chi.Router) {
			r.Use(auth.RequireSession(deps.Tokens, handler.WriteError))
			r.Get("/question", sessionHandler.HandleQuestion)
			r.Post("/submit", sessionHandler.HandleSubmit)
			r.With(s.limiter.Handler).Post("/run", sessionHandler.HandleRun)
			r.Get("/stats", sessionHandler.HandleStats)
		})
	})
}

// Handler returns the root handler, for tests and for embedding the API in
// another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) httpServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.config.writeTimeout(),
		IdleTimeout:       60 * time.Second,
	}
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests, including running programs, to finish
// 3. Stop the limiter sweeper and the session purger
// 4. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go s.limiter.RunSweeper(ctx, time.Minute)
	go s.sessions.RunPurger(ctx, s.retention, purgeInterval)

	srv := s.httpServer()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.shutdownTimeout())
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
