// Package server sets up the HTTP server, router, and all route definitions.
//
// New is the composition root: it opens the account database, builds the
// services and handlers from the configuration and wires them to routes.
// Start serves until SIGINT/SIGTERM and then shuts down gracefully.
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/github-explorer/internal/auth"
	"github.com/sakif/github-explorer/internal/config"
	"github.com/sakif/github-explorer/internal/explorer"
	"github.com/sakif/github-explorer/internal/github"
	"github.com/sakif/github-explorer/internal/handler"
	"github.com/sakif/github-explorer/internal/metrics"
	"github.com/sakif/github-explorer/internal/middleware"
	sqliteRepo "github.com/sakif/github-explorer/internal/repository/sqlite"
	"github.com/sakif/github-explorer/internal/service"
	"github.com/sakif/github-explorer/internal/view"
)

const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database, the tracker registry and the rate limiter;
// Close releases all three.
type Server struct {
	router   *chi.Mux
	metrics  http.Handler
	config   *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	trackers *explorer.Registry
	limiter  *middleware.RateLimiter
}

// New creates a Server from cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		trackers: explorer.NewRegistry(cfg.TrackerIdleTTL),
		limiter:  middleware.NewRateLimiter(middleware.SearchRateConfig(cfg.SearchRatePerMinute), logger),
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler serves the Prometheus exposition. It is mounted only on
// the metrics listener, never on the public router.
func (s *Server) MetricsHandler() http.Handler {
	return s.metrics
}

// setupRoutes configures all middleware and route handlers.
//
//	GET  /                          explorer page or sign-in screen
//	GET  /search?q=                 run a search, show the page
//	POST /theme/toggle              flip the theme cookie
//	GET  /auth/{provider}/login     start sign-in
//	GET  /auth/{provider}/callback  finish sign-in
//	POST /auth/logout               sign out
//	GET  /api/session               current session or null
//	GET  /api/me                    stored account         (session)
//	GET  /api/search?q=             search as JSON         (session, rate limited)
//	GET  /api/search/current        last state as JSON     (session)
//
// GET /metrics is served on METRICS_ADDR (loopback by default), not here.
//
// Middleware order matters: the request ID must exist before the logger
// reads it, and the session is loaded before any handler looks for it.
func (s *Server) setupRoutes() error {
	cfg := s.config

	tokens, err := auth.NewTokenService(cfg.SessionSecret, cfg.SessionMaxAge)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	// Google first: the sign-in screen lists providers in this order.
	providers := auth.NewProviders(
		auth.NewGoogleProvider(auth.ProviderConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.CallbackURL(auth.ProviderGoogle),
		}),
		auth.NewGitHubProvider(auth.ProviderConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.CallbackURL(auth.ProviderGitHub),
		}),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(registry)

	githubClient := github.NewClient(github.Config{
		BaseURL: cfg.GitHubAPIURL,
		Token:   cfg.GitHubAPIToken,
		Timeout: cfg.FetchTimeout,
	}, s.logger, recorder)

	fetcher := explorer.NewFetcher(githubClient, s.logger, recorder)
	searchService := service.NewSearchService(s.trackers, fetcher)
	authService := service.NewAuthService(s.db, tokens, s.logger)

	renderer, err := view.NewRenderer()
	if err != nil {
		return fmt.Errorf("parsing templates: %w", err)
	}
	builder := view.NewBuilder(cfg.AvatarHosts)

	secure := cfg.SecureCookies()
	pageHandler := handler.NewPageHandler(builder, renderer, searchService, providers, secure, s.logger)
	authHandler := handler.NewAuthHandler(providers, authService, searchService, tokens, secure, recorder, s.logger)
	apiHandler := handler.NewAPIHandler(searchService, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.SecurityHeaders(cfg.AvatarHosts))
	s.router.Use(middleware.SameOrigin(cfg.BaseURL, s.logger))
	s.router.Use(auth.LoadSession(tokens))

	// === Page Routes ===
	s.router.Get("/", pageHandler.HandleHome)
	s.router.Get("/search", pageHandler.HandleSearch)
	s.router.Post("/theme/toggle", pageHandler.HandleToggleTheme)

	// === Auth Routes ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/{provider}/login", authHandler.HandleLogin)
		r.Get("/{provider}/callback", authHandler.HandleCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/session", authHandler.HandleSession)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireSession(tokens))
			r.Get("/me", authHandler.HandleMe)
			r.With(s.limiter.Middleware).Get("/search", apiHandler.HandleSearch)
			r.Get("/search/current", apiHandler.HandleCurrent)
		})
	})

	s.metrics = metrics.Handler(registry)

	return nil
}

// Close stops the background cleanup loops and closes the database.
// It is safe to call more than once.
func (s *Server) Close() error {
	s.trackers.Stop()
	s.limiter.Stop()
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown:
//  1. stop accepting new connections
//  2. wait for in-flight requests (at most 30s)
//  3. stop the cleanup loops and close the database
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:    s.config.Addr(),
		Handler: s.router,
		// A search waits on two GitHub calls, each bounded by FetchTimeout.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*s.config.FetchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 2)

	var metricsSrv *http.Server
	if s.config.MetricsEnabled() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics)
		metricsSrv = &http.Server{
			Addr:              s.config.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			s.logger.Info("metrics listener starting", slog.String("addr", s.config.MetricsAddr))
			serverErrors <- metricsSrv.ListenAndServe()
		}()
	}

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.BaseURL),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		// One listener failed; take the other down with it.
		srv.Close()
		if metricsSrv != nil {
			metricsSrv.Close()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(ctx); err != nil {
				s.logger.Warn("metrics listener shutdown", slog.String("error", err.Error()))
			}
		}
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
