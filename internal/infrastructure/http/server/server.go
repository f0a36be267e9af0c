// Package server assembles the chi router exposing SCIL's five
// operations (spec.md section 6) plus the health endpoint, and runs the
// resulting http.Server with graceful shutdown, adapted from the
// teacher's internal/infrastructure/http/server package.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apphealth "github.com/sasp-edomex/scil-auditoria/internal/application/health"
	healthhttp "github.com/sasp-edomex/scil-auditoria/internal/adapters/http/health"
	"github.com/sasp-edomex/scil-auditoria/internal/adapters/http/scil"
	"github.com/sasp-edomex/scil-auditoria/internal/infrastructure/http/middleware"
)

// Options configures the router and server.
type Options struct {
	Addr            string
	Logger          *slog.Logger
	Health          *apphealth.Service
	SCIL            *scil.Handler
	JWT             *middleware.JWTAuthenticator
	Audit           middleware.AuditConfig
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server wraps the configured http.Server.
type Server struct {
	log             *slog.Logger
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

// New builds the router and wraps it in an http.Server.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Addr == "" {
		opts.Addr = ":4050"
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(middleware.AuditLogger(opts.Logger, opts.Audit))

	r.Get("/health", healthhttp.NewHandler(opts.Health).Status)

	r.Group(func(protected chi.Router) {
		if opts.JWT != nil {
			protected.Use(opts.JWT.Middleware)
		}
		opts.SCIL.Mount(protected)
	})

	httpServer := &http.Server{
		Addr:         opts.Addr,
		Handler:      r,
		ReadTimeout:  orDefault(opts.ReadTimeout, 10*time.Second),
		WriteTimeout: orDefault(opts.WriteTimeout, 60*time.Second),
		IdleTimeout:  orDefault(opts.IdleTimeout, 120*time.Second),
	}

	return &Server{
		log:             opts.Logger,
		httpServer:      httpServer,
		shutdownTimeout: orDefault(opts.ShutdownTimeout, 30*time.Second),
	}, nil
}

// Run starts the server and blocks until ctx is cancelled or the server
// fails.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server started", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		s.log.Info("shutting down HTTP server")
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// Close releases resources. Run's shutdown path already closes the
// listener; Close is a no-op kept for symmetry with callers that defer it
// unconditionally.
func (s *Server) Close() {}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
