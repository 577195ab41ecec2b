// Package server wires the stores, services, handlers and routes together
// and runs the HTTP server.
//
// DEPENDENCY INJECTION FLOW:
//
//	sqlite.DB (repository.KV)
//	  → store.Collection / store.Value   (tasks, users, currentUser, rememberEmail)
//	  → service.TaskService / service.AccountService
//	  → handler.*Handler
//	  → chi routes
//
// Everything is assembled in New; no package reaches for globals.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/deskkit/internal/auth"
	"github.com/sakif/deskkit/internal/handler"
	"github.com/sakif/deskkit/internal/middleware"
	"github.com/sakif/deskkit/internal/model"
	"github.com/sakif/deskkit/internal/repository"
	sqliteRepo "github.com/sakif/deskkit/internal/repository/sqlite"
	"github.com/sakif/deskkit/internal/service"
	"github.com/sakif/deskkit/internal/store"
)

// Config holds server configuration.
type Config struct {
	Port           int
	TemplateDir    string
	DBPath         string
	JWTSecret      string // empty: a random secret for this process
	PasswordScheme auth.Scheme
	BcryptCost     int
	SecureCookie   bool
}

// Server represents the HTTP server and all its dependencies.
// It owns the database connection and closes it on shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database, loads the stores and builds the router.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler returns the router. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes loads the stores, builds the services and registers routes.
//
// ROUTES:
//
//	GET    /                                board page (HTML)
//	GET    /api/tasks[?status=]             list tasks
//	POST   /api/tasks                       create task
//	DELETE /api/tasks?status=               clear pending or completed
//	GET    /api/tasks/stats                 counters
//	GET    /api/tasks/{id}                  one task
//	PUT    /api/tasks/{id}                  edit task
//	DELETE /api/tasks/{id}                  delete task
//	POST   /api/tasks/{id}/toggle           toggle completion
//	POST   /api/auth/register               create account
//	POST   /api/auth/login                  open session, issue token
//	POST   /api/auth/logout                 close session
//	GET    /api/auth/remembered             remembered email
//	POST   /api/auth/password-strength      grade a password
//	GET    /api/me                          profile       (auth)
//	PUT    /api/me                          edit profile  (auth)
//	PUT    /api/me/password                 change password (auth)
//	POST   /api/calculators                 new calculator
//	GET    /api/calculators/{id}            calculator state
//	DELETE /api/calculators/{id}            discard calculator
//	POST   /api/calculators/{id}/keys       press keys
//	POST   /api/evaluate                    evaluate an expression
//
// MIDDLEWARE ORDER:
// RequestID first so the logger sees the id, Recoverer last so a panic in
// a handler still gets logged as a 500.
func (s *Server) setupRoutes(ctx context.Context) error {
	var kv repository.KV = s.db

	// === STORES ===
	tasks, err := store.Open(ctx, kv, service.TaskSchema, s.logger)
	if err != nil {
		return fmt.Errorf("opening tasks: %w", err)
	}
	users, err := store.Open(ctx, kv, service.AccountSchema(time.Now), s.logger)
	if err != nil {
		return fmt.Errorf("opening users: %w", err)
	}
	session, err := store.OpenValue[model.Session](ctx, kv, repository.KeyCurrentUser, s.logger)
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	remember, err := store.OpenValue[string](ctx, kv, repository.KeyRememberEmail, s.logger)
	if err != nil {
		return fmt.Errorf("opening remembered email: %w", err)
	}

	// === AUTH ===
	bcryptDigester, err := auth.NewBcryptDigester(s.config.BcryptCost)
	if err != nil {
		return err
	}
	digester := auth.NewMultiDigester(s.config.PasswordScheme, bcryptDigester)

	secret := s.config.JWTSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		s.logger.Warn("JWT secret not set; using a random one, tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenService(secret)
	if err != nil {
		return err
	}

	// === SERVICES ===
	taskService := service.NewTaskService(tasks, s.logger)
	accountService := service.NewAccountService(users, session, remember, digester, s.logger)

	// === HANDLERS ===
	boardHandler, err := handler.NewBoardHandler(s.config.TemplateDir, taskService, accountService, s.logger)
	if err != nil {
		return fmt.Errorf("creating board handler: %w", err)
	}
	taskHandler := handler.NewTaskHandler(taskService, s.logger)
	accountHandler := handler.NewAccountHandler(accountService, tokens, s.config.SecureCookie, s.logger)
	calculatorHandler := handler.NewCalculatorHandler(s.logger)

	// === GLOBAL MIDDLEWARE ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	// === PAGES ===
	s.router.With(auth.OptionalAuth(tokens, accountService)).Get("/", boardHandler.HandleBoard)

	// === API ===
	s.router.Route("/api", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.HandleList)
			r.Post("/", taskHandler.HandleCreate)
			r.Delete("/", taskHandler.HandleClear)
			r.Get("/stats", taskHandler.HandleStats)
			r.Get("/{id}", taskHandler.HandleGet)
			r.Put("/{id}", taskHandler.HandleUpdate)
			r.Delete("/{id}", taskHandler.HandleDelete)
			r.Post("/{id}/toggle", taskHandler.HandleToggle)
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", accountHandler.HandleRegister)
			r.Post("/login", accountHandler.HandleLogin)
			r.Post("/logout", accountHandler.HandleLogout)
			r.Get("/remembered", accountHandler.HandleRemembered)
			r.Post("/password-strength", accountHandler.HandlePasswordStrength)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens, accountService))
			r.Get("/me", accountHandler.HandleMe)
			r.Put("/me", accountHandler.HandleUpdateMe)
			r.Put("/me/password", accountHandler.HandleChangePassword)
		})

		r.Route("/calculators", func(r chi.Router) {
			r.Post("/", calculatorHandler.HandleCreate)
			r.Get("/{id}", calculatorHandler.HandleGet)
			r.Delete("/{id}", calculatorHandler.HandleDelete)
			r.Post("/{id}/keys", calculatorHandler.HandleKeys)
		})
		r.Post("/evaluate", calculatorHandler.HandleEvaluate)
	})

	return nil
}

// Start runs the server until SIGINT or SIGTERM, then drains in-flight
// requests for up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// randomSecret returns 32 random bytes, hex encoded.
func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
