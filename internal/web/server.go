package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hivewarden/apis-viewer/internal/stream"
)

// StreamDirectory is the slice of the viewer manager the HTTP surface needs.
type StreamDirectory interface {
	// Snapshot returns info for all supervised stream sessions.
	Snapshot() []stream.Info

	// Info returns the snapshot for one unit.
	Info(unitID string) (stream.Info, error)

	// Retry triggers a manual retry for a failed unit session.
	Retry(unitID string) error

	// ViewFrame calls fn with the unit's current frame, if any.
	ViewFrame(unitID string, fn func(data []byte, at time.Time)) bool
}

// Config holds HTTP server configuration.
type Config struct {
	Port        int
	MetricsPath string
}

// Server exposes the viewer's local HTTP surface: health, metrics,
// stream status, manual retry, and MJPEG republish.
type Server struct {
	cfg    Config
	dir    StreamDirectory
	logger *slog.Logger
	srv    *http.Server
}

// NewServer creates the HTTP server.
func NewServer(cfg Config, dir StreamDirectory, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	s := &Server{
		cfg:    cfg,
		dir:    dir,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, cfg.MetricsPath, promhttp.Handler())
	r.Get("/api/streams", s.handleListStreams)
	r.Get("/api/streams/{unitID}", s.handleGetStream)
	r.Post("/api/streams/{unitID}/retry", s.handleRetry)
	r.Get("/streams/{unitID}/mjpeg", s.handleMJPEG)

	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}
	return s
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start begins serving. Blocks until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping http server")
	return s.srv.Shutdown(ctx)
}
