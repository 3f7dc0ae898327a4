// Package server exposes the converter over HTTP.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/mcncl/jsonflat/internal/cache"
	"github.com/mcncl/jsonflat/internal/converter"
	"github.com/mcncl/jsonflat/internal/quota"
	"github.com/mcncl/jsonflat/internal/schema"
)

// UserHeader carries the caller's username.
const UserHeader = "X-User"

// PremiumChecker reports whether a caller is exempt from the trial limit.
type PremiumChecker interface {
	IsPremium(ctx context.Context, username string) (bool, error)
}

// Config holds configuration for the API server.
type Config struct {
	Addr            string
	Policy          quota.Policy
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
	Converter       *converter.Converter
	Accounts        PremiumChecker // nil treats every caller as a trial user
	Cache           cache.Cache    // nil disables result caching
	Logger          *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	addr            string
	policy          quota.Policy
	maxBodyBytes    int64
	shutdownTimeout time.Duration
	conv            *converter.Converter
	validator       *schema.Validator
	accounts        PremiumChecker
	cache           cache.Cache
	logger          *slog.Logger
}

// New creates a new API server.
func New(cfg Config) (*Server, error) {
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to load request schemas: %w", err)
	}

	s := &Server{
		addr:            cfg.Addr,
		policy:          cfg.Policy,
		maxBodyBytes:    cfg.MaxBodyBytes,
		shutdownTimeout: cfg.ShutdownTimeout,
		conv:            cfg.Converter,
		validator:       validator,
		accounts:        cfg.Accounts,
		cache:           cfg.Cache,
		logger:          cfg.Logger,
	}
	if s.maxBodyBytes <= 0 {
		s.maxBodyBytes = 10 << 20
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = 5 * time.Second
	}
	if s.conv == nil {
		s.conv = converter.New()
	}
	if s.cache == nil {
		s.cache = cache.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s, nil
}

// Handler returns the router with every API route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.requestLogger,
		middleware.Recoverer,
	)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/convert", s.handleConvert)
		r.Post("/count", s.handleCount)
		r.Get("/user", s.handleUser)
	})
	return r
}

// Serve starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		s.logger.Info("starting API server", "addr", s.addr, "trial_limit", s.policy.Limit)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
