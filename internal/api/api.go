// Package api provides the HTTP JSON API and server lifecycle for BrandOS.
//
// Every endpoint drives a flow.SessionManager; the handlers hold no wizard logic of their own.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BTreeMap/BrandOS/internal/catalog"
	"github.com/BTreeMap/BrandOS/internal/flow"
)

const (
	// DefaultAddr is the listen address used when none is configured.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown of in-flight requests.
	DefaultShutdownTimeout = 10 * time.Second
	// maxBodyBytes caps request bodies; every payload here is a handful of strings.
	maxBodyBytes = 1 << 20
)

// Opts holds configuration for the API server.
type Opts struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		o.Addr = addr
	}
}

// WithShutdownTimeout sets how long Run waits for in-flight requests on shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.ShutdownTimeout = d
	}
}

// Server serves the onboarding API.
type Server struct {
	manager         *flow.SessionManager
	catalog         *catalog.Catalog
	addr            string
	shutdownTimeout time.Duration
	mux             *http.ServeMux
	startedAt       time.Time
}

// NewServer creates a server over manager. A nil catalog uses the embedded default.
func NewServer(manager *flow.SessionManager, cat *catalog.Catalog, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr, ShutdownTimeout: DefaultShutdownTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cat == nil {
		cat = catalog.Default()
	}
	s := &Server{
		manager:         manager,
		catalog:         cat,
		addr:            cfg.Addr,
		shutdownTimeout: cfg.ShutdownTimeout,
		mux:             http.NewServeMux(),
		startedAt:       time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.healthHandler)

	s.mux.HandleFunc("GET /sessions", s.listSessionsHandler)
	s.mux.HandleFunc("POST /sessions", s.createSessionHandler)
	s.mux.HandleFunc("GET /sessions/{id}", s.getSessionHandler)
	s.mux.HandleFunc("DELETE /sessions/{id}", s.resetSessionHandler)
	s.mux.HandleFunc("POST /sessions/{id}/events", s.dispatchEventHandler)
	s.mux.HandleFunc("GET /sessions/{id}/notifications", s.notificationsHandler)
	s.mux.HandleFunc("GET /sessions/{id}/chat", s.transcriptHandler)
	s.mux.HandleFunc("POST /sessions/{id}/chat", s.sendChatHandler)
	s.mux.HandleFunc("POST /sessions/{id}/documents", s.uploadDocumentHandler)

	s.mux.HandleFunc("GET /catalog", s.catalogHandler)
	s.mux.HandleFunc("GET /catalog/flows", s.catalogFlowsHandler)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Handler returns the root handler with request logging applied.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		slog.Error("Server.Run: failed to listen", "addr", s.addr, "error", err)
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run over an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("BrandOS API listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		slog.Error("Server.Serve: server failed", "error", err)
		return err
	case <-ctx.Done():
	}

	slog.Info("Server.Serve: shutting down", "timeout", s.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Serve: graceful shutdown failed", "error", err)
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}
