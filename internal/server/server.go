// Package server provides the HTTP service: the per-run console, the MCP
// API and operational endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/weppcloud/queryengine/internal/auth"
	"github.com/weppcloud/queryengine/internal/metrics"
	"github.com/weppcloud/queryengine/internal/server/features/console"
	"github.com/weppcloud/queryengine/internal/server/features/mcp"
	"github.com/weppcloud/queryengine/pkg/catalog"
	"github.com/weppcloud/queryengine/pkg/query"
	"github.com/weppcloud/queryengine/pkg/runctx"
)

// Config holds configuration for the server.
type Config struct {
	Listen    string
	RootPath  string
	Resolver  *runctx.Resolver
	Activator *catalog.Activator
	Query     *query.Service
	// Auth enables the MCP API when it carries a secret.
	Auth           *auth.Config
	UnsafePatterns []mcp.UnsafePattern
	RunInterchange bool
	OpenAPI        mcp.OpenAPIOptions
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// Server is the HTTP service.
type Server struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg.RootPath = strings.TrimRight(cfg.RootPath, "/")
	cfg.OpenAPI.RootPath = cfg.RootPath
	if cfg.Resolver == nil {
		cfg.Resolver = &runctx.Resolver{Logger: logger}
	}
	return &Server{cfg: cfg, logger: logger}
}

// Handler builds the router.
func (s *Server) Handler() (http.Handler, error) {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		accessLog(s.logger),
		recoverer(s.logger, s.cfg.Resolver),
		corsPolicy(),
		middleware.StripSlashes,
	)
	if s.cfg.Metrics != nil {
		r.Use(s.cfg.Metrics.Middleware)
		r.Handle("/metrics", s.cfg.Metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/docs/mcp_openapi.yaml", mcp.OpenAPIHandler(s.cfg.OpenAPI))

	if err := console.SetupRoutes(r, console.Deps{
		Resolver:       s.cfg.Resolver,
		Activator:      s.cfg.Activator,
		Query:          s.cfg.Query,
		RunInterchange: s.cfg.RunInterchange,
		RootPath:       s.cfg.RootPath,
		Logger:         s.logger,
	}); err != nil {
		return nil, fmt.Errorf("console routes: %w", err)
	}

	if s.cfg.Auth.Enabled() {
		if err := mcp.SetupRoutes(r, mcp.Deps{
			Auth:           s.cfg.Auth,
			Resolver:       s.cfg.Resolver,
			Activator:      s.cfg.Activator,
			Query:          s.cfg.Query,
			UnsafePatterns: s.cfg.UnsafePatterns,
			RunInterchange: s.cfg.RunInterchange,
			RootPath:       s.cfg.RootPath,
			Logger:         s.logger,
		}); err != nil {
			return nil, fmt.Errorf("mcp routes: %w", err)
		}
	} else {
		s.logger.Warn("MCP API disabled", "reason", auth.EnvSecret+" is not set")
	}

	return r, nil
}

// Serve starts the server and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	addr := s.cfg.Listen
	if addr == "" {
		addr = ":8080"
	}
	s.logger.Info("starting query engine", "addr", addr, "root_path", s.cfg.RootPath, "mcp", s.cfg.Auth.Enabled())

	eg, egctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down query engine...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
