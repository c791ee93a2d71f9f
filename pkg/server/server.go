// Package server exposes the enrichment session over HTTP: upload a CSV,
// drive the run, watch progress and download the enriched file.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/owner-enricher/pkg/csvio"
	"github.com/Sternrassler/owner-enricher/pkg/engine"
	"github.com/Sternrassler/owner-enricher/pkg/logging"
	"github.com/Sternrassler/owner-enricher/pkg/metrics"
)

// Config holds the server configuration.
type Config struct {
	Addr string

	// Redis is pinged by /ready when set.
	Redis *redis.Client

	MaxUploadBytes  int64
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxUploadBytes:  32 << 20,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Server is the HTTP control surface of one session controller.
type Server struct {
	cfg    Config
	ctrl   *engine.Controller
	router *chi.Mux
	logger zerolog.Logger

	// runCtx bounds runs started over HTTP; it ends with the server.
	runCtx    context.Context
	cancelRun context.CancelFunc
}

// New creates a server for ctrl.
func New(cfg Config, ctrl *engine.Controller) (*Server, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("session controller is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultConfig().Addr
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		ctrl:      ctrl,
		router:    chi.NewRouter(),
		logger:    logging.NewLogger("server"),
		runCtx:    runCtx,
		cancelRun: cancel,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(loggerMiddleware(s.logger))
	s.router.Use(middleware.Recoverer)

	s.routes()
	return s, nil
}

func loggerMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Debug().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("duration", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Msg("Request completed")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func (s *Server) routes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleStatus)
			r.Post("/start", s.handleStart)
			r.Post("/pause", s.handleCommand("pause", s.ctrl.Pause))
			r.Post("/resume", s.handleCommand("resume", s.ctrl.Resume))
			r.Post("/stop", s.handleCommand("stop", s.ctrl.Stop))
			r.Post("/reset", s.handleCommand("reset", func() error {
				s.ctrl.Reset()
				return nil
			}))
		})

		r.Get("/rows", s.handleRows)
		r.Get("/export", s.handleExport)
	})
}

// Handler returns the router (for tests and embedding).
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.cfg.Redis.Ping(ctx).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("Readiness check failed")
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "READY")
}

// handleUpload accepts a CSV either as multipart field "file" or as the raw
// request body and replaces the session's records.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	body := r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("read upload: %v", err))
			return
		}
		defer file.Close()
		body = file
	}

	records, err := csvio.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.ctrl.Replace(records); err != nil {
		if errors.Is(err, engine.ErrInvalidTransition) {
			writeError(w, http.StatusConflict, "stop the current run before uploading")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info().Int("total", len(records)).Msg("Records uploaded")
	writeJSON(w, http.StatusOK, s.ctrl.Progress())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if _, err := s.ctrl.Launch(s.runCtx); err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.ctrl.Progress())
}

func (s *Server) handleCommand(name string, fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(); err != nil {
			s.logger.Debug().Err(err).Str("command", name).Msg("Command rejected")
			writeCommandError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s.ctrl.Progress())
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Progress())
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Records())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="enriched_leads.csv"`)
	if err := csvio.Write(w, s.ctrl.Records()); err != nil {
		s.logger.Error().Err(err).Msg("Export failed")
	}
}

func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrNoRecords):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Start serves until ctx is cancelled, then shuts down gracefully and stops
// any run started over HTTP.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", server.Addr).Msg("Starting control server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.cancelRun()
		return err
	case <-ctx.Done():
	}

	s.cancelRun()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	s.logger.Info().Msg("Control server stopped")
	return nil
}
