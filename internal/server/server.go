// Package server wires the gateway together and runs the HTTP listener.
//
// New is the composition root: it builds the account store, the
// recommendation client, the event bus and the services, then mounts every
// handler on one chi router. Keeping this out of main.go lets tests build
// a complete server around an httptest backend.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/sakif/game-gateway/internal/auth"
	"github.com/sakif/game-gateway/internal/config"
	"github.com/sakif/game-gateway/internal/events"
	"github.com/sakif/game-gateway/internal/handler"
	"github.com/sakif/game-gateway/internal/metrics"
	"github.com/sakif/game-gateway/internal/middleware"
	"github.com/sakif/game-gateway/internal/normalize"
	"github.com/sakif/game-gateway/internal/recommender"
	"github.com/sakif/game-gateway/internal/repository"
	"github.com/sakif/game-gateway/internal/repository/jsonfile"
	sqliteRepo "github.com/sakif/game-gateway/internal/repository/sqlite"
	"github.com/sakif/game-gateway/internal/repository/store"
	"github.com/sakif/game-gateway/internal/service"
	"github.com/sakif/game-gateway/internal/vocabulary"
)

// Server owns the router and every long-lived resource behind it.
//
// RESOURCE MANAGEMENT:
// db is only set with the sqlite driver and bus only when rating
// forwarding is enabled. Both are released by Close, which Start calls on
// the way out.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	db      *sqliteRepo.DB
	bus     *events.Bus
}

// New builds the dependency graph described by cfg.
//
//	vocabulary ─┐
//	snapshotter → store ─┬→ AccountService → AccountHandler
//	password service ────┘          │
//	event bus ← ────────────────────┘
//	recommender client → GameService → GameHandler, SystemHandler
//	                    ↑
//	            forwarder (bus consumer)
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		metrics: metrics.New(),
	}

	snap, err := s.openSnapshotter()
	if err != nil {
		return nil, err
	}
	accounts := store.Open(context.Background(), snap, logger)
	vocab := vocabulary.Load(cfg.Vocabulary.Path, logger)

	client := recommender.New(recommender.Config{
		BaseURL: cfg.Recommender.BaseURL,
		Timeout: cfg.Recommender.Timeout,
		Breaker: recommender.BreakerConfig{
			Enabled:          cfg.Breaker.Enabled,
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
		},
	}, logger, recommender.WithObserver(s.metrics))

	// The service treats a nil publisher as "events disabled", so the bus
	// is only handed over when it exists.
	var publisher service.RatingPublisher
	if cfg.Events.ForwardRatings {
		bus, err := events.NewBus(logger, cfg.Events.Buffer)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating event bus: %w", err)
		}
		bus.HandleRatings("forward-ratings", events.NewForwarder(client, s.metrics, logger).Handle)
		s.bus = bus
		publisher = bus
	}

	norm := normalize.New(normalize.Options{
		PlaceholderImage: cfg.Normalize.PlaceholderImage,
		CurrencySymbol:   cfg.Normalize.CurrencySymbol,
		FreeLabel:        cfg.Normalize.FreeLabel,
	})
	games := service.NewGameService(client, accounts, norm, service.GameOptions{
		DefaultLimit: cfg.Discover.DefaultLimit,
		MinVotes:     cfg.Discover.MinVotes,
	}, s.metrics, logger)
	users := service.NewAccountService(accounts, vocab, auth.NewPasswordService(), publisher, logger)

	s.setupRoutes(
		handler.NewAccountHandler(users, games, logger),
		handler.NewGameHandler(games, logger),
		handler.NewSystemHandler(games, logger),
	)

	logger.Info("gateway configured",
		slog.String("backend", client.BaseURL()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("store_path", cfg.Store.Path),
		slog.Int("categories", vocab.Len()),
		slog.Bool("forward_ratings", s.bus != nil),
	)
	return s, nil
}

func (s *Server) openSnapshotter() (repository.Snapshotter, error) {
	path := s.config.Store.Path
	switch s.config.Store.Driver {
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		db, err := sqliteRepo.New(path)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		s.db = db
		return db, nil
	case config.DriverFile:
		return jsonfile.New(path), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", s.config.Store.Driver)
	}
}

// setupRoutes mounts middleware and every route.
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID and RealIP annotate the request for everything after them
//  2. Recoverer turns handler panics into 500s
//  3. Logger and Metrics observe the final status
//  4. CORS answers preflight requests before routing
func (s *Server) setupRoutes(ah *handler.AccountHandler, gh *handler.GameHandler, sh *handler.SystemHandler) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	s.router.Get("/healthz", sh.HandleLiveness)
	if s.config.Metrics.Enabled {
		s.router.Method(http.MethodGet, s.config.Metrics.Path, s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/system/health", sh.HandleBackendHealth)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", ah.HandleList)
			r.Post("/", ah.HandleRegister)
			r.Get("/categories", ah.HandleCategories)
			r.With(s.loginLimiter()).Post("/login", ah.HandleLogin)
			r.Get("/{id}", ah.HandleGet)
			r.Post("/{id}/ratings", ah.HandleSubmitRating)
			r.Get("/{id}/recommendations", ah.HandleRecommendations)
		})

		r.Route("/games", func(r chi.Router) {
			r.Get("/", gh.HandleList)
			r.Get("/discover", gh.HandleDiscover)
			r.Get("/search", gh.HandleSearch)
			r.Get("/categories", gh.HandleByCategories)
			r.Get("/random", gh.HandleRandom)
			r.Get("/ranking/best", gh.HandleBestRated)
			r.Get("/ranking/popular", gh.HandlePopular)
			r.Get("/{id}", gh.HandleGet)
			r.Get("/{id}/similar", gh.HandleSimilar)
			r.Post("/{id}/rate", gh.HandleRate)
		})
	})
}

// loginLimiter throttles credential guessing per client IP. A zero
// request budget disables it.
func (s *Server) loginLimiter() func(http.Handler) http.Handler {
	rl := s.config.RateLimit
	if rl.LoginRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(rl.LoginRequests, rl.LoginWindow)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// startEvents runs the bus in the background and returns once its
// consumers are subscribed, so no rating published afterwards is lost.
func (s *Server) startEvents(ctx context.Context) error {
	if s.bus == nil {
		return nil
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.bus.Run(ctx)
	}()

	select {
	case <-s.bus.Running():
		return nil
	case err := <-errCh:
		return fmt.Errorf("event bus stopped: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start serves until SIGINT or SIGTERM, then drains in-flight requests
// and releases resources.
func (s *Server) Start() error {
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.startEvents(ctx); err != nil {
		return err
	}

	cfg := s.config.Server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", cfg.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", cfg.Port)),
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

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

// Close stops the event bus and closes the database. Safe to call more
// than once.
func (s *Server) Close() {
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			s.logger.Warn("closing event bus", slog.String("error", err.Error()))
		}
		s.bus = nil
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("closing database", slog.String("error", err.Error()))
		}
		s.db = nil
	}
}
