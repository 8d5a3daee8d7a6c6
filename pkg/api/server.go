// Package api serves a read-only HTTP view of the refresh log, the decoded
// event archive and decoding slot positions.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ssargent/refreshwal/pkg/metrics"
	"github.com/ssargent/refreshwal/pkg/rmgr"
)

// Server holds the API server state
type Server struct {
	records RecordSource
	events  EventSource
	table   *rmgr.Table
	config  ServerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewServer creates a new API server. events may be nil when no archive is
// configured; the event and slot routes then answer 503.
func NewServer(records RecordSource, events EventSource, table *rmgr.Table, config ServerConfig,
	m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		records: records,
		events:  events,
		table:   table,
		config:  config,
		metrics: m,
		logger:  logger,
	}
}

// Router builds the HTTP handler with all routes configured
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.metrics.InstrumentHandler("GET", "/health", s.handleHealth))

	// Prometheus metrics endpoint (unprotected for scraping)
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if s.config.Gatherer != nil {
		gatherer = s.config.Gatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Swagger documentation (unprotected)
	r.Get("/swagger/*", s.handleSwagger)

	r.Route("/api/v1", func(r chi.Router) {
		if s.config.APIKey != "" {
			r.Use(apiKeyMiddleware(s.config.APIKey))
		}

		r.Get("/records", s.metrics.InstrumentHandler("GET", "/api/v1/records", s.handleListRecords))
		r.Get("/records/{lsn}", s.metrics.InstrumentHandler("GET", "/api/v1/records/{lsn}", s.handleGetRecord))
		r.Get("/events", s.metrics.InstrumentHandler("GET", "/api/v1/events", s.handleListEvents))
		r.Get("/slots/{slot}", s.metrics.InstrumentHandler("GET", "/api/v1/slots/{slot}", s.handleGetSlot))
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Bind, s.config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("inspection server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down inspection server")
		return srv.Shutdown(shutdownCtx)
	}
}
