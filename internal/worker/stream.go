package worker

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/slidetrace/internal/playback"
	"github.com/thebtf/slidetrace/internal/render"
	"github.com/thebtf/slidetrace/internal/replay"
	"github.com/thebtf/slidetrace/pkg/models"
)

// handleLiveStream subscribes the caller to a session's live event feed.
// Every accepted batch is pushed as a "batch" SSE event.
func (s *Service) handleLiveStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := s.sessions.GetByID(r.Context(), sessionID); err != nil {
		writeDomainError(w, err)
		return
	}
	s.hub.Stream(sessionID).Serve(w, r)
}

// manifestFor resolves a slide manifest from the registry, falling back to
// the store mirror.
func (s *Service) manifestFor(r *http.Request, slideID string) (*models.SlideManifest, error) {
	m, err := s.registry.Get(slideID)
	if err == nil {
		return m, nil
	}
	return s.slides.Get(r.Context(), slideID)
}

// queryFloat parses a float query parameter with a default.
func queryFloat(r *http.Request, key string, def float64) (float64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

// handleReplayStream replays a session's trace as a paced SSE frame stream.
// The container size is the caller's choice; framing is resolved from logged
// bounds, so any size shows the same level-0 rectangles.
func (s *Service) handleReplayStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	width, err := queryFloat(r, "width", 1280)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	height, err := queryFloat(r, "height", 720)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	speed, err := queryFloat(r, "speed", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	session, err := s.sessions.GetByID(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	manifest, err := s.manifestFor(r, session.SlideID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	events, err := s.events.ListEvents(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("session %s has no events", sessionID))
		return
	}

	surface := render.NewFake(manifest, width, height)
	engine, err := replay.NewEngine(events, manifest, surface)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming not supported"))
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctrl := playback.NewController(engine, playback.Config{
		Speeds:        s.config.Playback.Speeds,
		MinDwell:      s.config.Playback.MinDwell,
		MaxDwell:      s.config.Playback.MaxDwell,
		SettleTimeout: s.config.Playback.SettleTimeout,
	})
	if err := ctrl.SetSpeed(speed); err != nil {
		// Unsupported multipliers run at real time rather than failing the
		// stream after headers went out.
		log.Debug().Float64("speed", speed).Msg("Unsupported replay speed, using 1x")
	}

	ctrl.OnFrame = func(frame replay.Frame) {
		payload, err := json.Marshal(frame)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal replay frame")
			return
		}
		fmt.Fprintf(w, "event: frame\ndata: %s\n\n", payload)
		flusher.Flush()
	}

	if err := ctrl.Play(r.Context()); err != nil && r.Context().Err() == nil {
		log.Warn().Err(err).Str("sessionId", sessionID).Msg("Replay stream ended with error")
		return
	}

	fmt.Fprint(w, "event: done\ndata: {}\n\n")
	flusher.Flush()
}
