package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/config"
	"github.com/isdmx/scriptbox/sandbox"
)

// Version is reported by the documentation endpoint.
const Version = "2.0"

// Executor runs scripts; *sandbox.Engine implements it.
type Executor interface {
	Execute(ctx context.Context, script string) sandbox.Result
	Mode() string
}

// Server is the REST front end of the execution engine
type Server struct {
	config   *config.Config
	logger   *zap.Logger
	executor Executor
	router   *chi.Mux
	http     *http.Server
}

// New creates a Server. mcpHandler is mounted at /mcp when non-nil.
func New(cfg *config.Config, logger *zap.Logger, executor Executor, mcpHandler http.Handler) *Server {
	s := &Server{
		config:   cfg,
		logger:   logger,
		executor: executor,
		router:   chi.NewRouter(),
	}

	s.routes(mcpHandler)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Leave room for the execution budget plus isolation grace.
		WriteTimeout: cfg.GetTimeout() + time.Duration(cfg.Sandbox.GraceSec)*time.Second + 30*time.Second,
	}

	return s
}

func (s *Server) routes(mcpHandler http.Handler) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/", s.handleHome)
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Group(func(r chi.Router) {
		if s.config.Server.MaxConcurrent > 0 {
			r.Use(chimiddleware.Throttle(s.config.Server.MaxConcurrent))
		}
		r.Post("/execute", s.handleExecute)
	})

	if mcpHandler != nil {
		s.router.Handle("/mcp", mcpHandler)
	}
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background; bind errors are
// returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.http.Addr, err)
	}

	s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
