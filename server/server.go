package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/joeychilson/autolink/logger"
	"github.com/joeychilson/autolink/server/middleware"
	"github.com/joeychilson/autolink/service"
)

const defaultMaxBodyBytes = 5 << 20

// Config holds configuration for the API server.
type Config struct {
	// RedisClient enables distributed rate limiting (optional, in-memory if nil).
	RedisClient *redis.Client
	// RateLimitRequests is the number of requests allowed per window (default: 100).
	RateLimitRequests int
	// RateLimitWindow is the time window for rate limiting (default: 1 minute).
	RateLimitWindow time.Duration
	// MaxBodyBytes caps request bodies (default: 5 MiB).
	MaxBodyBytes int64
	// APIKey protects the /v1 routes when set.
	APIKey string
	// Metrics serves GET /metrics (default: the global Prometheus registry).
	Metrics http.Handler
}

// Server is the HTTP server for the API.
type Server struct {
	service *service.Service
	logger  logger.Logger
	router  *chi.Mux
}

// New creates a new API server with chi router and middleware stack.
func New(svc *service.Service, log logger.Logger, cfg *Config) (*Server, error) {
	if svc == nil {
		return nil, errors.New("service cannot be nil")
	}
	if log == nil {
		log = logger.Noop()
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Metrics == nil {
		cfg.Metrics = promhttp.Handler()
	}

	s := &Server{
		service: svc,
		logger:  log,
		router:  chi.NewRouter(),
	}

	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", cfg.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Use(chimiddleware.RequestSize(cfg.MaxBodyBytes))
		r.Use(middleware.APIKey(cfg.APIKey))
		r.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestLimit:   cfg.RateLimitRequests,
			WindowDuration: cfg.RateLimitWindow,
			RedisClient:    cfg.RedisClient,
		}))

		r.Post("/link", s.handleLink)
		r.Post("/rules", s.handleRules)
	})

	return s, nil
}

// Router returns the HTTP handler for the server.
func (s *Server) Router() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// StartWithShutdown serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) StartWithShutdown(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}
