// Package api provides the HTTP surface for Hifadhi Link.
//
// It exposes the USSD gateway callback, health and metrics endpoints, and
// the token-protected admin endpoints for seeding alerts/contacts and
// exporting incidents.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Vulimwa/hifadhi-ussd/internal/store"
	"github.com/Vulimwa/hifadhi-ussd/internal/ussd"
)

// Default server configuration constants.
const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"
	// DefaultResponseBudget bounds how long a USSD request may take before
	// the handler emits the proactive timeout response. The upstream
	// gateway gives up at around 20 seconds.
	DefaultResponseBudget = 15 * time.Second
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr           string
	AdminToken     string
	ResponseBudget time.Duration
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAdminToken sets the shared token guarding the admin endpoints.
// An empty token disables them.
func WithAdminToken(token string) Option {
	return func(o *Opts) { o.AdminToken = token }
}

// WithResponseBudget overrides the USSD response deadline.
func WithResponseBudget(budget time.Duration) Option {
	return func(o *Opts) { o.ResponseBudget = budget }
}

// Server hosts the HTTP endpoints around the USSD decoder.
type Server struct {
	decoder    *ussd.Decoder
	st         store.Store
	adminToken string
	budget     time.Duration
	httpServer *http.Server
}

// NewServer wires the API server with its collaborators.
func NewServer(decoder *ussd.Decoder, st store.Store, opts ...Option) *Server {
	cfg := Opts{
		Addr:           DefaultAddr,
		ResponseBudget: DefaultResponseBudget,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		decoder:    decoder,
		st:         st,
		adminToken: cfg.AdminToken,
		budget:     cfg.ResponseBudget,
	}

	r := chi.NewRouter()
	r.Get("/", s.bannerHandler)
	r.Get("/healthz", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/ussd", s.ussdHandler)
	r.Route("/admin", func(r chi.Router) {
		r.Use(s.adminAuth)
		r.Post("/alerts/seed", s.seedAlertsHandler)
		r.Post("/contacts/seed", s.seedContactsHandler)
		r.Get("/export/incidents.csv", s.exportIncidentsHandler)
	})

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.ResponseBudget + 5*time.Second,
	}
	return s
}

// Run starts the server and blocks until the context is canceled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
