// Package server provides the HTTP server setup and wiring.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pendergraft/explorerverify/internal/auth"
	"github.com/pendergraft/explorerverify/internal/chains"
	"github.com/pendergraft/explorerverify/internal/config"
	"github.com/pendergraft/explorerverify/internal/endpoints"
	"github.com/pendergraft/explorerverify/internal/explorer"
	"github.com/pendergraft/explorerverify/internal/middleware/logging"
	"github.com/pendergraft/explorerverify/internal/middleware/ratelimit"
	"github.com/pendergraft/explorerverify/internal/observability/metrics"
	"github.com/pendergraft/explorerverify/internal/storage"
	verificationDomain "github.com/pendergraft/explorerverify/internal/verification/domain"
	verificationTransport "github.com/pendergraft/explorerverify/internal/verification/transport"
)

// Standard JSON inputs of large projects run to several megabytes.
const maxRequestBody = 32 << 20

// Server is the HTTP server
type Server struct {
	cfg      *config.Config
	store    storage.Store
	logger   *slog.Logger
	router   *chi.Mux
	networks *endpoints.Table

	verification *verificationDomain.Service
	stopLimiter  func()
}

// Option configures a Server
type Option func(*options)

type options struct {
	explorer verificationDomain.Explorer
	provider chains.Provider
	networks *endpoints.Table
}

// WithExplorer replaces the explorer client built from config.
func WithExplorer(e verificationDomain.Explorer) Option {
	return func(o *options) {
		o.explorer = e
	}
}

// WithProvider enables chain ID and bytecode checks against a node.
func WithProvider(p chains.Provider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithNetworks replaces the endpoint table.
func WithNetworks(t *endpoints.Table) Option {
	return func(o *options) {
		o.networks = t
	}
}

// New creates a new server
func New(cfg *config.Config, store storage.Store, logger *slog.Logger, opts ...Option) (*Server, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.networks == nil {
		o.networks = endpoints.Default()
		if cfg.Explorer.EndpointsFile != "" {
			t, err := o.networks.MergeFile(cfg.Explorer.EndpointsFile)
			if err != nil {
				return nil, err
			}
			o.networks = t
		}
	}

	if o.explorer == nil {
		o.explorer = NewExplorerClient(cfg.Explorer, logger)
	}

	svcOpts := []verificationDomain.Option{
		verificationDomain.WithAPIKey(cfg.Explorer.APIKey),
		verificationDomain.WithLogger(logger),
	}
	if o.provider != nil {
		svcOpts = append(svcOpts, verificationDomain.WithProvider(o.provider))
	}

	s := &Server{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		router:       chi.NewRouter(),
		networks:     o.networks,
		verification: verificationDomain.NewService(store, o.networks, o.explorer, svcOpts...),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// NewExplorerClient builds the explorer client from config, reporting polls to metrics.
func NewExplorerClient(cfg config.ExplorerConfig, logger *slog.Logger) *explorer.Client {
	opts := []explorer.Option{
		explorer.WithLogger(logger),
		explorer.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		explorer.WithPollObserver(func(_ int, resp *explorer.Response) {
			metrics.ExplorerPoll(resp.Outcome())
		}),
	}
	if cfg.PollInterval > 0 {
		opts = append(opts, explorer.WithPollInterval(cfg.PollInterval))
	}
	if cfg.HTTPTimeout > 0 {
		opts = append(opts, explorer.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
	}
	return explorer.New(opts...)
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

// Shutdown cancels running verifications and waits for them to record their
// final status.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopLimiter != nil {
		s.stopLimiter()
	}
	if err := s.verification.Shutdown(ctx); err != nil {
		return fmt.Errorf("stopping verifications: %w", err)
	}
	return nil
}

func (s *Server) setupMiddleware() {
	// Order matters: the client IP must be settled before logging and rate limiting.
	if s.cfg.Proxy.TrustProxy {
		s.router.Use(middleware.RealIP)
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)

	if metrics.Enabled() {
		s.router.Handle("/metrics", metrics.Handler())
	}

	handler := verificationTransport.NewHandler(s.verification, s.networks, s.logger)

	limit, stop := ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	})
	s.stopLimiter = stop

	// API v1 routes
	s.router.Route("/api/v1", func(r chi.Router) {
		if s.cfg.Server.RequestTimeout > 0 {
			r.Use(middleware.Timeout(time.Duration(s.cfg.Server.RequestTimeout) * time.Second))
		}

		handler.RegisterRoutes(r)

		// Starting a job costs explorer quota
		r.Group(func(r chi.Router) {
			r.Use(limit)
			if len(s.cfg.Auth.Tokens) > 0 {
				r.Use(auth.Middleware(auth.NewTokens(s.cfg.Auth.Tokens), writeError))
			}
			r.Use(middleware.RequestSize(maxRequestBody))
			r.Use(middleware.AllowContentType("application/json"))
			handler.RegisterWriteRoutes(r)
		})
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady checks that the store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	_, err := s.store.GetAttempt(ctx, "00000000-0000-0000-0000-000000000000")
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, verificationTransport.ErrorResponse{
		Error: verificationTransport.ErrorDetail{Code: code, Message: message},
	})
}
