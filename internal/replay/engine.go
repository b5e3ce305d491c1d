// Package replay reconstructs the exact sequence of viewport states a user
// saw, purely from the ordered event log. Framing uses bounds-fit: an
// explicit image-space rectangle, so replay on any container size shows the
// identical level-0 rectangle at every step.
package replay

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/slidetrace/internal/geom"
	"github.com/thebtf/slidetrace/internal/render"
	"github.com/thebtf/slidetrace/pkg/models"
)

// Frame is the result of applying one event: what the surface shows and any
// auxiliary payload for the audit UI.
type Frame struct {
	Index    int                `json:"index"`
	Kind     models.EventKind   `json:"kind"`
	Viewport models.Bounds      `json:"viewport"`
	Marker   *models.Point      `json:"marker,omitempty"`
	Label    *models.Annotation `json:"label,omitempty"`
	Degraded bool               `json:"degraded,omitempty"`
}

// Engine deterministically drives a rendering surface through a completed
// session's event list. It never recomputes navigation; every framing comes
// from logged data.
type Engine struct {
	events   []models.Event
	manifest *models.SlideManifest
	surface  render.Surface
}

// NewEngine validates that the events are ordered by timestamp and returns
// an engine bound to the surface.
func NewEngine(events []models.Event, manifest *models.SlideManifest, surface render.Surface) (*Engine, error) {
	var prev int64
	for i, ev := range events {
		if ev.TimestampEpoch < prev {
			return nil, fmt.Errorf("event %d out of order: %d < %d", i, ev.TimestampEpoch, prev)
		}
		prev = ev.TimestampEpoch
	}
	return &Engine{events: events, manifest: manifest, surface: surface}, nil
}

// Len returns the number of events.
func (e *Engine) Len() int { return len(e.events) }

// Event returns the i-th event.
func (e *Engine) Event(i int) models.Event { return e.events[i] }

// Surface returns the rendering surface the engine drives.
func (e *Engine) Surface() render.Surface { return e.surface }

// Apply replays the i-th event against the surface and returns the
// resulting frame. The mapping per kind:
//
//   - session_start, slide_ready, reset_to_fit: whole-slide bounds-fit.
//   - click_zoom_in: no viewport change; only a marker at the click point
//     against the current (pre-transition) framing, since the event's own
//     bounds are the state before the transition that follows it.
//   - zoom_transition, pan, zoom_out_step, undo_step: bounds-fit of the
//     recorded viewport_bounds (the state after the action).
//   - label_chosen, session_end: metadata only, viewport untouched.
func (e *Engine) Apply(ctx context.Context, i int) (Frame, error) {
	if i < 0 || i >= len(e.events) {
		return Frame{}, fmt.Errorf("event index %d out of range [0,%d)", i, len(e.events))
	}
	ev := e.events[i]
	frame := Frame{Index: i, Kind: ev.Kind}

	switch ev.Kind {
	case models.KindSessionStart, models.KindSlideReady, models.KindResetToFit:
		if err := e.surface.FitBounds(ctx, e.manifest.FullBounds()); err != nil {
			return frame, fmt.Errorf("fit whole slide: %w", err)
		}

	case models.KindClickZoomIn:
		frame.Marker = ev.ClickPoint

	case models.KindZoomTransition, models.KindPan, models.KindZoomOutStep, models.KindUndoStep:
		target, degraded := e.targetBounds(ev)
		frame.Degraded = degraded
		if err := e.surface.FitBounds(ctx, target); err != nil {
			return frame, fmt.Errorf("fit %s: %w", ev.Kind, err)
		}

	case models.KindLabelChosen:
		frame.Label = ev.Annotation

	case models.KindSessionEnd:
		// Terminal marker; the final framing stays on screen.

	default:
		return frame, fmt.Errorf("unknown event kind %q", ev.Kind)
	}

	frame.Viewport = e.surface.Bounds()
	return frame, nil
}

// targetBounds resolves the rectangle an event frames. Events recorded
// before bounds logging existed carry only center+nominal-zoom; those are
// reconstructed at reduced fidelity and flagged, never "repaired".
func (e *Engine) targetBounds(ev models.Event) (models.Bounds, bool) {
	if ev.ViewportBounds != nil {
		return *ev.ViewportBounds, false
	}

	log.Warn().
		Str("sessionId", ev.SessionID).
		Str("kind", string(ev.Kind)).
		Msg("Legacy event without viewport bounds, degrading to center+zoom reconstruction")

	if ev.ViewportCenter == nil || ev.Magnification == nil {
		// Nothing usable at all: fall back to the whole slide.
		return e.manifest.FullBounds(), true
	}
	cw, ch := e.surface.ContainerSize()
	return geom.BoundsForMagnification(*ev.ViewportCenter, *ev.Magnification, cw, ch), true
}
