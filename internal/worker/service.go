// Package worker provides the HTTP trace-capture service for slidetrace.
package worker

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/slidetrace/internal/config"
	gormdb "github.com/thebtf/slidetrace/internal/db/gorm"
	"github.com/thebtf/slidetrace/internal/errs"
	"github.com/thebtf/slidetrace/internal/slides"
	"github.com/thebtf/slidetrace/internal/worker/sse"
)

// Service is the trace-capture HTTP worker: session lifecycle, event
// ingestion, manifest lookup and replay streaming.
type Service struct {
	version   string
	config    *config.Config
	store     *gormdb.Store
	sessions  *gormdb.SessionStore
	events    *gormdb.EventStore
	slides    *gormdb.SlideStore
	registry  *slides.Registry
	hub       *sse.Hub
	router    *chi.Mux
	ctx       context.Context
	cancel    context.CancelFunc
	ready     atomic.Bool
	startTime time.Time
}

// NewService wires the service together and registers its routes.
func NewService(version string, cfg *config.Config, store *gormdb.Store, registry *slides.Registry) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	sessionStore := gormdb.NewSessionStore(store, cfg.Session.AttemptThreshold)

	svc := &Service{
		version:   version,
		config:    cfg,
		store:     store,
		sessions:  sessionStore,
		events:    gormdb.NewEventStore(store, sessionStore),
		slides:    gormdb.NewSlideStore(store),
		registry:  registry,
		hub:       sse.NewHub(),
		router:    chi.NewRouter(),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	svc.setupRoutes()
	return svc
}

// setupRoutes registers all HTTP endpoints.
func (s *Service) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/ready", s.handleReady)
	s.router.Get("/api/version", s.handleVersion)
	s.router.Get("/api/stats", s.handleStats)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireReady)

		r.Post("/api/sessions/start", s.handleStartSession)
		r.Get("/api/sessions/{sessionID}", s.handleGetSession)
		r.Post("/api/sessions/{sessionID}/events", s.handleAppendEvents)
		r.Get("/api/sessions/{sessionID}/events", s.handleListEvents)
		r.Post("/api/sessions/{sessionID}/complete", s.handleCompleteSession)
		r.Get("/api/sessions/{sessionID}/paths", s.handleClickPaths)
		r.Get("/api/sessions/{sessionID}/live", s.handleLiveStream)
		r.Get("/api/sessions/{sessionID}/replay/stream", s.handleReplayStream)

		r.Get("/api/slides", s.handleListSlides)
		r.Get("/api/slides/{slideID}/manifest", s.handleGetManifest)
	})
}

// Run serves HTTP until ctx is done, then shuts down gracefully.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.config.ListenAddr).Str("version", s.version).Msg("Worker listening")
		errCh <- server.ListenAndServe()
	}()

	s.ready.Store(true)

	select {
	case <-ctx.Done():
		s.ready.Store(false)
		s.cancel()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Router exposes the HTTP handler. Test hook.
func (s *Service) Router() http.Handler { return s.router }

// requireReady rejects requests until initialization finishes.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			writeError(w, http.StatusServiceUnavailable, errors.New("service not ready"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs every request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("Request handled")
	})
}

// writeJSON serializes v with the shared encoder.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError emits the standard error envelope.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeDomainError maps domain sentinels to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrSessionNotFound), errors.Is(err, errs.ErrSlideNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, errs.ErrSessionCompleted):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, errs.ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	default:
		log.Error().Err(err).Msg("Internal error")
		writeError(w, http.StatusInternalServerError, err)
	}
}

// handleHealth reports liveness and uptime.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.store.Ping(); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"uptime":  time.Since(s.startTime).String(),
		"slides":  s.registry.Len(),
		"version": s.version,
	})
}

// handleReady reports whether the service accepts traffic.
func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion reports the build version.
func (s *Service) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// handleStats reports storage and stream counters.
func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	totalSessions, completedSessions, err := s.sessions.Counts(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	totalEvents, err := s.events.CountAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions":           totalSessions,
		"sessions_completed": completedSessions,
		"events":             totalEvents,
		"slides":             s.registry.Len(),
		"uptime":             time.Since(s.startTime).String(),
	})
}
