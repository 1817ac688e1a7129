// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects handlers, middleware, and
// routes, and owns every long-lived resource (database, cache, rate limiter).
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config ─┬─ sqlite.DB ─── UserDB ──────── AuthService ──── AuthHandler
//	               │             └─ SummaryDB ───┐
//	               ├─ extract.Registry ──────────┼─ SummaryService ─ SummaryHandler
//	               ├─ llm.Client (provider) ─────┤
//	               └─ cache.Cache (Redis/Nop) ───┘
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/routes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/text-summarizer/internal/auth"
	"github.com/sakif/text-summarizer/internal/cache"
	"github.com/sakif/text-summarizer/internal/config"
	"github.com/sakif/text-summarizer/internal/extract"
	"github.com/sakif/text-summarizer/internal/handler"
	"github.com/sakif/text-summarizer/internal/llm"
	"github.com/sakif/text-summarizer/internal/metrics"
	"github.com/sakif/text-summarizer/internal/middleware"
	sqliteRepo "github.com/sakif/text-summarizer/internal/repository/sqlite"
	"github.com/sakif/text-summarizer/internal/service"
)

const (
	shutdownTimeout = 30 * time.Second
	limiterSweep    = time.Minute

	// Share links are public; this bounds id guessing per caller.
	sharedPerMinute = 60
	sharedBurst     = 20
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and the cache client. Start closes
// both after the HTTP server has drained; Close does the same for callers
// (tests) that never call Start.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	cache   cache.Cache
	metrics *metrics.Metrics

	summaryLimiter *middleware.RateLimiter
	sharedLimiter  *middleware.RateLimiter
}

// Option overrides a dependency New would otherwise build from config.
type Option func(*options)

type options struct {
	provider    llm.Provider
	providerSet bool
	verifier    service.IdentityVerifier
	oauth       handler.OAuthFlow
	cache       cache.Cache
}

// WithProvider replaces the AI provider built from AI_PROVIDER. A nil
// provider simulates a missing API key.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider, o.providerSet = p, true }
}

// WithIdentityVerifier replaces the Google ID-token verifier.
func WithIdentityVerifier(v service.IdentityVerifier) Option {
	return func(o *options) { o.verifier = v }
}

// WithOAuthFlow replaces the Google redirect flow and enables its routes.
func WithOAuthFlow(f handler.OAuthFlow) Option {
	return func(o *options) { o.oauth = f }
}

// WithCache replaces the share-link cache built from REDIS_ADDR.
func WithCache(c cache.Cache) Option {
	return func(o *options) { o.cache = c }
}

// New builds every dependency from cfg and wires the routes.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// === DATABASE ===
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,

		summaryLimiter: middleware.NewRateLimiter(cfg.SummaryRatePerMinute, cfg.SummaryRateBurst, logger),
		sharedLimiter:  middleware.NewRateLimiter(sharedPerMinute, sharedBurst, logger),
	}
	if cfg.MetricsEnabled {
		s.metrics = metrics.New()
	}

	// === CACHE ===
	s.cache = o.cache
	if s.cache == nil {
		s.cache = newCache(ctx, cfg, logger)
	}

	// === AI PROVIDER ===
	provider := o.provider
	if !o.providerSet {
		provider, err = newProvider(ctx, cfg)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating AI provider: %w", err)
		}
	}
	if provider == nil {
		logger.Warn("no AI API key configured; summarization requests will fail",
			slog.String("provider", cfg.AIProvider))
	}

	if err := s.routes(provider, o); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// newProvider builds the provider selected by AI_PROVIDER, or nil when its
// API key is missing.
func newProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	switch cfg.AIProvider {
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, nil
		}
		return llm.NewGeminiProvider(ctx, llm.GeminiConfig{
			APIKey:    cfg.GeminiAPIKey,
			Model:     cfg.AIModel,
			MaxTokens: cfg.AIMaxTokens,
		})
	default:
		if cfg.OpenAIAPIKey == "" {
			return nil, nil
		}
		return llm.NewOpenAIProvider(llm.OpenAIConfig{
			Name:      cfg.AIProvider,
			APIKey:    cfg.OpenAIAPIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			Model:     cfg.AIModel,
			MaxTokens: cfg.AIMaxTokens,
		}), nil
	}
}

// newCache connects to Redis when configured. An unreachable Redis is only a
// warning: cache errors fall back to the database at request time.
func newCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.Nop{}
	}

	c := cache.NewRedis(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Prefix:   "summarizer:",
	}, logger)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable; share links will be served from the database",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("redis connected", slog.String("addr", cfg.RedisAddr))
	}
	return c
}

// routes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /                            → service banner
//	GET    /health                      → liveness check
//	GET    /metrics                     → Prometheus (METRICS_ENABLED)
//	POST   /auth/register               → create account
//	POST   /auth/login                  → email/password sign-in
//	POST   /auth/google                 → Google ID-token sign-in
//	GET    /auth/google/login           → OAuth redirect (when configured)
//	GET    /auth/google/callback        → OAuth callback (when configured)
//	GET    /auth/me                     → current user          [auth]
//	POST   /auth/logout                 → clear the session     [auth]
//	POST   /api/summary                 → summarize             [auth, rate limited]
//	GET    /api/summary/shared/{shareId}→ public share link     [optional auth, rate limited]
//	GET    /api/history                 → list own summaries    [auth]
//	DELETE /api/history/{id}            → delete own summary    [auth]
//	PATCH  /api/history/{id}/favorite   → toggle favorite       [auth]
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns an id that Logger prints
//  2. RealIP: rewrites RemoteAddr from proxy headers (used by the rate limiter)
//  3. Logger: one line per request
//  4. Recoverer: turns panics into 500s
//  5. CORS: answers preflights before auth runs
//  6. Metrics: counts by route pattern
func (s *Server) routes(provider llm.Provider, o options) error {
	cfg := s.config

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	verifier := o.verifier
	if verifier == nil {
		verifier = auth.NewGoogleVerifier(cfg.GoogleClientID)
	}
	oauth := o.oauth
	if oauth == nil && cfg.GoogleRedirectEnabled() {
		oauth = auth.NewGoogleOAuth(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	}

	var llmOpts []llm.Option
	if s.metrics != nil {
		llmOpts = append(llmOpts, llm.WithMetrics(s.metrics))
	}
	summarizer := llm.NewClient(provider, cfg.AITimeout, s.logger, llmOpts...)

	// === SERVICES ===
	authService := service.NewAuthService(s.db.Users(), tokens, auth.NewPasswordService(cfg.BcryptCost), verifier, s.logger)
	summaryService := service.NewSummaryService(
		s.db.Summaries(),
		extract.DefaultRegistry(),
		summarizer,
		s.cache,
		cfg.ShareCacheTTL,
		s.logger,
	)

	// === HANDLERS ===
	authHandler := handler.NewAuthHandler(authService, oauth, cfg.CookieSecure, cfg.ClientURL, s.logger)
	summaryHandler := handler.NewSummaryHandler(summaryService, cfg.MaxUploadBytes, s.logger)
	metaHandler := handler.NewMetaHandler(cfg.Env)

	// === Global Middleware ===
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}

	r.NotFound(handler.HandleNotFound)
	r.MethodNotAllowed(handler.HandleMethodNotAllowed)

	r.Get("/", metaHandler.HandleIndex)
	r.Get("/health", metaHandler.HandleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	requireAuth := auth.RequireAuth(tokens)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/google", authHandler.HandleGoogle)
		if oauth != nil {
			r.Get("/google/login", authHandler.HandleGoogleLogin)
			r.Get("/google/callback", authHandler.HandleGoogleCallback)
		}

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", authHandler.HandleMe)
			r.Post("/logout", authHandler.HandleLogout)
		})
	})

	r.Route("/api", func(r chi.Router) {
		// Signed-in callers are limited per user, anonymous ones per IP.
		r.With(auth.OptionalAuth(tokens), s.sharedLimiter.Middleware).
			Get("/summary/shared/{shareId}", summaryHandler.HandleShared)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.With(s.summaryLimiter.Middleware).Post("/summary", summaryHandler.HandleSummarize)
			r.Get("/history", summaryHandler.HandleHistory)
			r.Delete("/history/{id}", summaryHandler.HandleDelete)
			r.Patch("/history/{id}/favorite", summaryHandler.HandleToggleFavorite)
		})
	})

	return nil
}

// Handler returns the root HTTP handler (used by tests with httptest).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. ctx is cancelled (SIGINT/SIGTERM in main)
//  2. stop accepting connections; in-flight requests get up to 30s
//  3. close the cache client and the database
//
// errgroup ties the listener, the shutdown watcher and the rate-limiter
// janitors together. The first one to fail cancels the others.
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(s.config.Port)),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// A summarization request may wait for the provider for AITimeout.
		WriteTimeout: s.config.AITimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.Env),
			slog.String("database", s.config.DBPath),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	for _, l := range []*middleware.RateLimiter{s.summaryLimiter, s.sharedLimiter} {
		g.Go(func() error {
			return l.Run(gctx, limiterSweep)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}

// Close releases the cache client and the database.
func (s *Server) Close() error {
	var errs []error
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing cache: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}
	return errors.Join(errs...)
}
