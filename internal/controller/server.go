// Package controller contains the HTTP API of the job service.
package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"tileexport/internal/controller/handlers"
	"tileexport/internal/controller/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Options configures the routes served by the job service.
type Options struct {
	Limits         handlers.Limits
	APITokens      []string
	RateLimit      float64
	RateLimitBurst int
	Metrics        http.Handler
	Logger         *slog.Logger
}

// Server is the HTTP server for the job service API.
type Server struct {
	httpServer *http.Server
}

// New creates a new job service server.
func New(addr string, store handlers.StoreFactory, opts Options) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(store, opts),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// NewRouter builds the route tree.
func NewRouter(store handlers.StoreFactory, opts Options) http.Handler {
	h := handlers.New(store, opts.Limits, opts.Logger)
	limiter := middleware.NewRateLimiter(middleware.WithLimit(opts.RateLimit, opts.RateLimitBurst))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Observe(opts.Logger))

	// Probes
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	// Public authenticated apis
	r.Group(func(r chi.Router) {
		r.Use(middleware.TokenAuth(opts.APITokens))
		r.Use(limiter.Middleware())

		r.Get("/jobs", h.ListJobs)
		r.Post("/models", h.CreateModel)
		r.Post("/ingestions", h.CreateIngestion)
	})

	return r
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
