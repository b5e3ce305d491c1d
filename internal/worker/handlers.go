package worker

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/slidetrace/internal/errs"
	"github.com/thebtf/slidetrace/internal/geom"
	"github.com/thebtf/slidetrace/internal/replay"
	"github.com/thebtf/slidetrace/pkg/models"
)

// startSessionRequest identifies the viewer and the slide.
type startSessionRequest struct {
	UserID  string `json:"user_id"`
	SlideID string `json:"slide_id"`
}

// sessionResponse is the wire shape of a session; nullable columns become
// optional fields.
type sessionResponse struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	SlideID        string  `json:"slide_id"`
	AttemptNumber  int     `json:"attempt_number"`
	StartedAt      string  `json:"started_at"`
	StartedAtEpoch int64   `json:"started_at_epoch"`
	LastStartedAt  *int64  `json:"last_started_at_epoch,omitempty"`
	CompletedAt    *string `json:"completed_at,omitempty"`
	Label          *string `json:"label,omitempty"`
}

func toSessionResponse(s *models.Session) sessionResponse {
	resp := sessionResponse{
		ID:             s.ID,
		UserID:         s.UserID,
		SlideID:        s.SlideID,
		AttemptNumber:  s.AttemptNumber,
		StartedAt:      s.StartedAt,
		StartedAtEpoch: s.StartedAtEpoch,
	}
	if s.LastStartedAtEpoch.Valid {
		v := s.LastStartedAtEpoch.Int64
		resp.LastStartedAt = &v
	}
	if s.CompletedAt.Valid {
		v := s.CompletedAt.String
		resp.CompletedAt = &v
	}
	if s.Label.Valid {
		v := s.Label.String
		resp.Label = &v
	}
	return resp
}

// handleStartSession starts or resumes the active session for a
// (user, slide) pair. The response carries the server-decided attempt
// number; clients never compute it.
func (s *Service) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	if _, err := s.registry.Get(req.SlideID); err != nil {
		// Fall back to the store: replay-only deployments have no tile dir.
		if _, serr := s.slides.Get(r.Context(), req.SlideID); serr != nil {
			writeDomainError(w, err)
			return
		}
	}

	session, resumed, err := s.sessions.StartOrResume(r.Context(), req.UserID, req.SlideID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	log.Debug().
		Str("sessionId", session.ID).
		Bool("resumed", resumed).
		Int("attempt", session.AttemptNumber).
		Msg("Session started")

	writeJSON(w, http.StatusOK, map[string]any{
		"session": toSessionResponse(session),
		"resumed": resumed,
	})
}

// handleGetSession returns one session.
func (s *Service) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.GetByID(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// appendEventsRequest carries one recorder batch.
type appendEventsRequest struct {
	Events []models.Event `json:"events"`
}

// handleAppendEvents ingests a recorder batch. The batch is atomic: it is
// stored whole or rejected whole. Accepted batches are fanned out to live
// subscribers.
func (s *Service) handleAppendEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req appendEventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	n, err := s.events.AppendEvents(r.Context(), sessionID, req.Events)
	if err != nil {
		if errs.IsTransient(err) {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeDomainError(w, err)
		return
	}

	if n > 0 {
		s.hub.Publish(sessionID, "batch", map[string]any{
			"appended": n,
			"events":   req.Events,
		})
	}

	writeJSON(w, http.StatusOK, map[string]int{"appended": n})
}

// handleListEvents returns a session's full event log in replay order.
func (s *Service) handleListEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if _, err := s.sessions.GetByID(r.Context(), sessionID); err != nil {
		writeDomainError(w, err)
		return
	}
	events, err := s.events.ListEvents(r.Context(), sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"count":      len(events),
		"events":     events,
	})
}

// completeSessionRequest carries the diagnostic label.
type completeSessionRequest struct {
	Label string `json:"label"`
}

// handleCompleteSession finalizes a session. Completion is terminal; a
// second call conflicts.
func (s *Service) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req completeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.Label == "" {
		writeError(w, http.StatusBadRequest, errors.New("label is required"))
		return
	}

	if err := s.sessions.Complete(r.Context(), sessionID, req.Label); err != nil {
		writeDomainError(w, err)
		return
	}

	log.Info().Str("sessionId", sessionID).Str("label", req.Label).Msg("Session completed")
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// handleClickPaths returns the exploration segments for the audit overlay,
// with each click mapped to its patch lattice cell so paths line up with the
// tiling pipeline's grid.
func (s *Service) handleClickPaths(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

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

	paths := replay.ClickPaths(events)
	cellSize := float64(manifest.PatchPx)
	cells := make([][][2]int, len(paths))
	for i, segment := range paths {
		cells[i] = make([][2]int, len(segment))
		for j, p := range segment {
			col, row := geom.CellIndex(p.X, p.Y, cellSize)
			cells[i][j] = [2]int{col, row}
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"paths":      paths,
		"cells":      cells,
	})
}

// handleListSlides returns every known manifest.
func (s *Service) handleListSlides(w http.ResponseWriter, r *http.Request) {
	manifests, err := s.slides.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"slides": manifests})
}

// handleGetManifest returns one slide manifest, preferring the on-disk
// registry and falling back to the store mirror.
func (s *Service) handleGetManifest(w http.ResponseWriter, r *http.Request) {
	slideID := chi.URLParam(r, "slideID")

	m, err := s.registry.Get(slideID)
	if err != nil {
		m, err = s.slides.Get(r.Context(), slideID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, m)
}
