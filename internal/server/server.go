package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/tinynewsco/docpub/internal/api"
	"github.com/tinynewsco/docpub/internal/config"
	"github.com/tinynewsco/docpub/internal/home"
	"github.com/tinynewsco/docpub/internal/metrics"
	"github.com/tinynewsco/docpub/internal/server/endpoints"
	"github.com/tinynewsco/docpub/internal/svcctx"
)

// Server is the docpub HTTP server. It hosts the conversion and publishing
// endpoints and rebuilds its services whenever the config file changes.
type Server struct {
	httpServer *http.Server
	configMgr  *config.Manager
	logger     *slog.Logger
	metrics    *metrics.Metrics
	home       *home.Dir
	overrides  svcctx.Options
	attempts   uint

	// services holds all core services for context enrichment
	svcMu    sync.RWMutex
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Home is the docpub home directory holding the image caches
	Home *home.Dir
	// Metrics is the registry served on /metrics (default: a new one)
	Metrics *metrics.Metrics
	// Services overrides the image store and HTTP image collaborators
	Services svcctx.Options
	// SwaggerSpecPath is the generated OpenAPI spec served on /swagger.json
	SwaggerSpecPath string
	// ContentAPIAttempts is how many pings Start waits for the content API
	// before serving anyway (0 skips the check)
	ContentAPIAttempts uint
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}

	s := &Server{
		configMgr: cfg.ConfigManager,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		home:      cfg.Home,
		overrides: cfg.Services,
		attempts:  cfg.ContentAPIAttempts,
	}

	services, err := s.buildServices(cfg.ConfigManager.Get())
	if err != nil {
		return nil, err
	}
	s.services = services

	s.endpointRegistry, err = api.NewRegistry(endpoints.All(endpoints.Config{SwaggerSpecPath: cfg.SwaggerSpecPath})...)
	if err != nil {
		return nil, err
	}

	// Rebuild services on config changes; keep the old ones if the new
	// config does not wire.
	cfg.ConfigManager.OnChange(func(c *config.Config) {
		services, err := s.buildServices(c)
		if err != nil {
			s.logger.Error("config reload failed, keeping previous services", "error", err)
			return
		}
		s.svcMu.Lock()
		s.services = services
		s.svcMu.Unlock()
		s.logger.Info("services reloaded from config")
	})

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(s.endpointRegistry.Mux(s.requireInit)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

func (s *Server) buildServices(c *config.Config) (*svcctx.Services, error) {
	opts := s.overrides
	opts.Config = c
	opts.Home = s.home
	opts.Logger = s.logger
	opts.Metrics = s.metrics
	services, err := svcctx.New(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build services: %w", err)
	}
	return services, nil
}

// Start starts the server.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if s.attempts > 0 {
		if err := s.Services().ContentAPI.WaitHealthy(ctx, s.attempts, 2*time.Second); err != nil {
			s.logger.Warn("content API not reachable, serving anyway", "error", err)
		}
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		s.logger.Debug("routes registered", "routes", s.endpointRegistry.Patterns())
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Services returns the services currently in use.
func (s *Server) Services() *svcctx.Services {
	s.svcMu.RLock()
	defer s.svcMu.RUnlock()
	return s.services
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if services := s.Services(); services != nil {
			ctx = svcctx.WithServices(ctx, services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the services are wired.
// Returns 503 Service Unavailable otherwise.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svcctx.RunnerFrom(r.Context()) == nil || svcctx.PublisherFrom(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
