// Package server sets up the HTTP server, router and route definitions.
//
// main.go loads the configuration and builds the app; this package decides
// which URL patterns map to which handlers, which middleware runs where and
// how the server stops.
package server

import (
	"context"
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

	"github.com/sakif/usage-dashboard/internal/app"
	"github.com/sakif/usage-dashboard/internal/auth"
	"github.com/sakif/usage-dashboard/internal/handler"
	"github.com/sakif/usage-dashboard/internal/middleware"
)

// Server represents the HTTP server and the app it serves.
//
// RESOURCE MANAGEMENT:
// The app owns the database and the sandbox container pool. Start closes
// the app after the listener has drained.
type Server struct {
	router *chi.Mux
	app    *app.App
	logger *slog.Logger
}

// New builds the router for a wired app.
func New(a *app.App, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		app:    a,
		logger: logger,
	}
	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// setupRoutes configures middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                    → liveness probe
// GET    /metrics                    → Prometheus exposition
// POST   /auth/login                 → operator login          (auth enabled only)
// POST   /auth/logout                → clear the session cookie (auth enabled only)
// POST   /api/uploads                → ingest one weekly report
// GET    /api/reports                → stored report weeks
// DELETE /api/reports/{date}         → delete one report week
// GET    /api/tables/{table}         → filtered master table
// GET    /api/kpis                   → latest-week KPIs
// GET    /api/backends               → generation backends
// POST   /api/charts/generate        → new chart from a request
// POST   /api/charts/refine          → revise the current chart
// GET    /api/charts/current         → current chart
// DELETE /api/charts/current         → forget the current chart
// GET    /api/charts                 → saved charts
// POST   /api/charts                 → save the current chart
// GET    /api/charts/{id}            → one saved chart
// PUT    /api/charts/{id}            → rename a saved chart
// DELETE /api/charts/{id}            → delete a saved chart
// POST   /api/charts/{id}/render     → re-run a saved chart
// GET    /api/me                     → authenticated subject
//
// MIDDLEWARE ORDER:
// RequestID runs first so the logger can report it; Recoverer sits inside
// the logger so a recovered panic is still logged as a 500.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger, s.app.Metrics))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.app.Metrics != nil {
		s.router.Handle("/metrics", s.app.Metrics.Handler())
	}

	dashboardHandler := handler.NewDashboardHandler(s.app.Dashboard, s.logger)
	chartHandler := handler.NewChartHandler(s.app.Charts, s.app.Dashboard, s.logger)

	// Auth is optional. Without a JWT secret and password hash the API is
	// open, which suits a dashboard bound to localhost.
	var tokens *auth.TokenService
	var authHandler *handler.AuthHandler
	cfg := s.app.Config
	if cfg.AuthEnabled() {
		var err error
		tokens, err = auth.NewTokenService(cfg.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
		authHandler = handler.NewAuthHandler(auth.NewPasswordService(), tokens, cfg.OperatorPasswordHash, cfg.SecureCookie, s.logger)

		s.router.Post("/auth/login", authHandler.HandleLogin)
		s.router.Post("/auth/logout", authHandler.HandleLogout)
	} else {
		s.logger.Warn("JWT_SECRET or OPERATOR_PASSWORD_HASH not set, authentication is disabled")
	}

	s.router.Route("/api", func(r chi.Router) {
		if tokens != nil {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/me", authHandler.HandleMe)
		}

		r.Post("/uploads", dashboardHandler.HandleUpload)
		r.Get("/reports", dashboardHandler.HandleListReports)
		r.Delete("/reports/{date}", dashboardHandler.HandleDeleteReport)
		r.Get("/tables/{table}", dashboardHandler.HandleTable)
		r.Get("/kpis", dashboardHandler.HandleKPIs)

		r.Get("/backends", chartHandler.HandleBackends)
		r.Route("/charts", func(r chi.Router) {
			r.Post("/generate", chartHandler.HandleGenerate)
			r.Post("/refine", chartHandler.HandleRefine)
			r.Get("/current", chartHandler.HandleCurrent)
			r.Delete("/current", chartHandler.HandleClear)

			r.Get("/", chartHandler.HandleList)
			r.Post("/", chartHandler.HandleSave)
			r.Get("/{id}", chartHandler.HandleGet)
			r.Put("/{id}", chartHandler.HandleRename)
			r.Delete("/{id}", chartHandler.HandleDelete)
			r.Post("/{id}/render", chartHandler.HandleRender)
		})
	})

	return nil
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully:
//  1. stop accepting connections
//  2. wait up to 30s for in-flight requests (a generation can take a while)
//  3. close the app (container pool, database)
func (s *Server) Start() error {
	defer func() {
		if err := s.app.Close(); err != nil {
			s.logger.Error("closing app", slog.String("error", err.Error()))
		}
	}()

	cfg := s.app.Config
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", cfg.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", cfg.Port)),
			slog.String("data_dir", cfg.DataDir),
			slog.String("database", cfg.DBPath),
			slog.String("executor", s.app.Charts.EngineName()),
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
