// Package server exposes the HTTP surface: health, stored chart images
// and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	charts "github.com/finsight/fpagent/chart"
)

// ComponentCheck reports the configured state of one subsystem, such as
// "ok", "disabled" or an error description.
type ComponentCheck func(ctx context.Context) string

// Server serves status and chart artifacts over HTTP.
type Server struct {
	addr        string
	charts      charts.Storage
	components  map[string]ComponentCheck
	lastRefresh func(ctx context.Context) (time.Time, error)
	registry    *prometheus.Registry
	logger      *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithChartStorage enables chart serving under /charts/{id}.
func WithChartStorage(storage charts.Storage) Option {
	return func(s *Server) { s.charts = storage }
}

// WithComponent registers a named subsystem check for /health.
func WithComponent(name string, check ComponentCheck) Option {
	return func(s *Server) { s.components[name] = check }
}

// WithLastRefresh reports the newest metrics refresh time on /health.
func WithLastRefresh(fn func(ctx context.Context) (time.Time, error)) Option {
	return func(s *Server) { s.lastRefresh = fn }
}

// WithRegistry serves the given Prometheus registry on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New creates a server listening on addr.
func New(addr string, opts ...Option) *Server {
	s := &Server{
		addr:       addr,
		components: map[string]ComponentCheck{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/charts/{id}", s.handleChart)
	if s.registry != nil {
		r.Get("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP)
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type healthResponse struct {
	Status             string            `json:"status"`
	Components         map[string]string `json:"components"`
	LastMetricsRefresh string            `json:"last_metrics_refresh,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := healthResponse{Status: "ok", Components: map[string]string{}}

	names := make([]string, 0, len(s.components))
	for name := range s.components {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		resp.Components[name] = s.components[name](ctx)
	}

	if s.lastRefresh != nil {
		last, err := s.lastRefresh(ctx)
		switch {
		case err != nil:
			s.logger.Warn("reading last refresh failed", "error", err)
		case !last.IsZero():
			resp.LastMetricsRefresh = last.UTC().Format(time.RFC3339)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("writing health response failed", "error", err)
	}
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	if s.charts == nil {
		http.Error(w, "chart storage not configured", http.StatusNotFound)
		return
	}

	id := chi.URLParam(r, "id")
	data, err := s.charts.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, charts.ErrNotFound) {
			http.Error(w, "chart not found or expired", http.StatusNotFound)
			return
		}
		s.logger.Error("loading chart failed", "chart", id, "error", err)
		http.Error(w, "failed to load chart", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("writing chart response failed", "chart", id, "error", err)
	}
}
