// Package api exposes flow sessions over HTTP so web and mobile renderers
// can drive the reel and the questionnaire.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BTreeMap/ReelPipe/internal/session"
	"github.com/BTreeMap/ReelPipe/internal/store"
)

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = ":8080"
	// IdempotencyHeader lets a renderer retry an event without applying it twice.
	IdempotencyHeader = "Idempotency-Key"

	maxBodyBytes      = 64 << 10
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Opts holds server configuration.
type Opts struct {
	Addr string
}

// Option configures a Server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server routes renderer requests to live sessions.
type Server struct {
	router   chi.Router
	sessions *session.Manager
	st       store.Store
	addr     string
}

// NewServer builds the router. st stores submissions and idempotency keys.
func NewServer(sessions *session.Manager, st store.Store, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{
		router:   chi.NewRouter(),
		sessions: sessions,
		st:       st,
		addr:     cfg.Addr,
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) routes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			slog.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", s.healthHandler)

	s.router.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSessionHandler)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSessionHandler)
			r.Delete("/", s.deleteSessionHandler)
			r.Post("/continue", s.continueHandler)
			r.Post("/select", s.selectHandler)
			r.Post("/text", s.textHandler)
			r.Post("/contact", s.contactHandler)
			r.Put("/draft", s.draftHandler)
			r.Post("/restart", s.restartHandler)
		})
	})

	s.router.Get("/submissions", s.listSubmissionsHandler)
	s.router.Get("/submissions/{sessionID}", s.getSubmissionHandler)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("API server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
