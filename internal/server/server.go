// Copyright (c) 2025 The go-passkey-rp Authors
//
// This file is part of go-passkey-rp.
//
// go-passkey-rp is licensed under the GNU Affero General Public License v3.0.
// See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

// Package server wires the relying-party service, storage backend,
// middleware stack, and operational endpoints into a runnable HTTP server.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/passkeylab/go-passkey-rp/internal/config"
	"github.com/passkeylab/go-passkey-rp/pkg/correlation"
	"github.com/passkeylab/go-passkey-rp/pkg/health"
	"github.com/passkeylab/go-passkey-rp/pkg/metrics"
	"github.com/passkeylab/go-passkey-rp/pkg/ratelimit"
	"github.com/passkeylab/go-passkey-rp/pkg/relyingparty"
	rphttp "github.com/passkeylab/go-passkey-rp/pkg/relyingparty/http"
	"github.com/passkeylab/go-passkey-rp/pkg/relyingparty/pgstore"
)

// Server hosts the WebAuthn ceremony endpoints together with health
// probes and the metrics endpoint.
type Server struct {
	cfg       *config.Config
	logger    *slog.Logger
	service   *relyingparty.Service
	checker   *health.Checker
	limiter   *ratelimit.Limiter
	collector *metrics.ResourceCollector
	pool      *pgxpool.Pool

	router     *chi.Mux
	httpServer *http.Server
}

// New creates a server from the loaded configuration. The context is
// used for storage initialization (connecting and migrating PostgreSQL).
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = NewLogger(cfg.Logging)
	}

	svcCfg, err := cfg.RelyingParty.ToServiceConfig()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		checker: health.NewChecker(),
	}

	users, challenges, credentials, err := s.openStores(ctx, &svcCfg)
	if err != nil {
		return nil, err
	}

	service, err := relyingparty.NewService(relyingparty.ServiceParams{
		Config:          &svcCfg,
		UserStore:       users,
		ChallengeStore:  challenges,
		CredentialStore: credentials,
	})
	if err != nil {
		s.closeStores()
		return nil, fmt.Errorf("failed to create relying-party service: %w", err)
	}
	s.service = service

	if cfg.Metrics.Enabled {
		metrics.Enable()
		s.collector = metrics.NewResourceCollector(15 * time.Second)
		s.collector.Start()
	} else {
		metrics.Disable()
	}

	s.limiter = ratelimit.New(&ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMin,
	})

	tlsConfig, err := cfg.TLS.LoadTLSConfig()
	if err != nil {
		s.closeStores()
		return nil, fmt.Errorf("failed to load TLS configuration: %w", err)
	}

	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		TLSConfig:    tlsConfig,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// openStores builds the persistence layer selected by the storage config
// and registers the matching readiness check.
func (s *Server) openStores(ctx context.Context, svcCfg *relyingparty.Config) (relyingparty.UserStore, relyingparty.ChallengeStore, relyingparty.CredentialStore, error) {
	switch s.cfg.Storage.Backend {
	case config.StoragePostgres:
		pool, err := pgxpool.Connect(ctx, s.cfg.Storage.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := pgstore.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
		s.pool = pool

		s.checker.RegisterCheck("storage", health.StoreCheck("storage", func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				metrics.SetStoreHealth(config.StoragePostgres, false)
				return err
			}
			metrics.SetStoreHealth(config.StoragePostgres, true)
			return nil
		}))

		return pgstore.NewUserStore(pool),
			pgstore.NewChallengeStore(pool, svcCfg.ChallengeTTL),
			pgstore.NewCredentialStore(pool),
			nil

	case config.StorageMemory, "":
		credentials := relyingparty.NewMemoryCredentialStore()

		s.checker.RegisterCheck("storage", health.StoreCheck("storage", func(ctx context.Context) error {
			metrics.SetStoreHealth(config.StorageMemory, true)
			metrics.SetCredentialsTotal(config.StorageMemory, float64(credentials.Count()))
			return nil
		}))

		return relyingparty.NewMemoryUserStore(),
			relyingparty.NewMemoryChallengeStoreWithTTL(svcCfg.ChallengeTTL),
			credentials,
			nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported storage backend: %s", s.cfg.Storage.Backend)
	}
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(correlation.Middleware)
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)
	r.Use(metrics.CeremonyMiddleware)
	r.Use(CORSMiddleware)
	r.Use(ratelimit.Middleware(s.limiter))

	if s.cfg.Health.Enabled {
		r.Get("/health", s.HealthHandler)
		r.Head("/health", s.HealthHandler)
		r.Get("/health/live", s.LivenessHandler)
		r.Get("/health/ready", s.ReadinessHandler)
		r.Get("/health/startup", s.StartupHandler)
	}

	if s.cfg.Metrics.Enabled {
		r.Handle(s.cfg.Metrics.Path, promhttp.Handler())
	}

	handler := rphttp.NewHandler(s.service).WithLogger(s.logger)
	if s.cfg.Server.DefaultUsername != "" {
		handler = handler.WithDefaultUser(s.cfg.Server.DefaultUsername, s.cfg.Server.DefaultDisplayName)
	}
	rphttp.MountChi(r, handler)

	return r
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Service returns the underlying relying-party service.
func (s *Server) Service() *relyingparty.Service {
	return s.service
}

// HealthChecker returns the server's health checker.
func (s *Server) HealthChecker() *health.Checker {
	return s.checker
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.checker.MarkStarted()

	if s.cfg.TLS.Enabled {
		s.logger.Info("Starting HTTPS server",
			"addr", s.httpServer.Addr,
			"rp_id", s.cfg.RelyingParty.ID)

		// Certificates are already loaded into TLSConfig
		if err := s.httpServer.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTPS server: %w", err)
		}
		return nil
	}

	s.logger.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"rp_id", s.cfg.RelyingParty.ID)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the server and releases all resources.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.logger.Error("Failed to shutdown server", "error", err)
	}

	if s.collector != nil {
		s.collector.Stop()
	}
	s.limiter.Stop()
	s.closeStores()

	if err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

func (s *Server) closeStores() {
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
}
