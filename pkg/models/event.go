// Package models contains domain models for slidetrace.
package models

import (
	"fmt"
	"math"
	"time"
)

// EventKind identifies one discrete interaction recorded during a viewing
// session. The set is closed: both the recorder and the replay engine switch
// exhaustively over it.
type EventKind string

const (
	KindSessionStart   EventKind = "session_start"
	KindSlideReady     EventKind = "slide_ready"
	KindClickZoomIn    EventKind = "click_zoom_in"
	KindZoomTransition EventKind = "zoom_transition"
	KindPan            EventKind = "pan"
	KindZoomOutStep    EventKind = "zoom_out_step"
	KindUndoStep       EventKind = "undo_step"
	KindResetToFit     EventKind = "reset_to_fit"
	KindLabelChosen    EventKind = "label_chosen"
	KindSessionEnd     EventKind = "session_end"
)

// Kinds lists every valid event kind in no particular order.
var Kinds = []EventKind{
	KindSessionStart, KindSlideReady, KindClickZoomIn, KindZoomTransition,
	KindPan, KindZoomOutStep, KindUndoStep, KindResetToFit,
	KindLabelChosen, KindSessionEnd,
}

// Valid reports whether k is a member of the closed kind set.
func (k EventKind) Valid() bool {
	switch k {
	case KindSessionStart, KindSlideReady, KindClickZoomIn, KindZoomTransition,
		KindPan, KindZoomOutStep, KindUndoStep, KindResetToFit,
		KindLabelChosen, KindSessionEnd:
		return true
	}
	return false
}

// Viewportless reports whether events of this kind carry no viewport
// snapshot. Only label choices are pure metadata; every other kind must log
// a full (bounds, center, magnification, pyramid level) tuple.
func (k EventKind) Viewportless() bool {
	return k == KindLabelChosen
}

// ClickDriven reports whether events of this kind carry an explicit user
// click point.
func (k EventKind) ClickDriven() bool {
	return k == KindClickZoomIn
}

// Magnifications are the nominal rungs of the zoom ladder. Whole-slide fit
// is represented by a nil magnification, not a rung value.
var Magnifications = []float64{2.5, 5, 10, 20, 40}

// ValidMagnification reports whether m is one of the fixed ladder rungs.
func ValidMagnification(m float64) bool {
	for _, v := range Magnifications {
		if v == m {
			return true
		}
	}
	return false
}

// Annotation is the optional label attached to terminal events.
type Annotation struct {
	Text  string `json:"text,omitempty"`
	Label string `json:"label,omitempty"`
}

// Event is an immutable record of one discrete interaction. Coordinates are
// level-0 pixels; timestamps are RFC3339 with millisecond precision plus a
// matching epoch-millisecond column for ordering.
type Event struct {
	ID             int64       `json:"id,omitempty"`
	Timestamp      string      `json:"timestamp"`
	TimestampEpoch int64       `json:"timestamp_epoch"`
	SessionID      string      `json:"session_id"`
	UserID         string      `json:"user_id"`
	SlideID        string      `json:"slide_id"`
	Kind           EventKind   `json:"kind"`
	ViewportBounds *Bounds     `json:"viewport_bounds,omitempty"`
	ViewportCenter *Point      `json:"viewport_center,omitempty"`
	Magnification  *float64    `json:"magnification,omitempty"`
	PyramidLevel   *int        `json:"pyramid_level,omitempty"`
	ClickPoint     *Point      `json:"click_point,omitempty"`
	AttemptNumber  int         `json:"attempt_number"`
	Annotation     *Annotation `json:"annotation,omitempty"`
}

// centerTolerance is how far (in level-0 pixels) a logged center may drift
// from the bounds midpoint before the event is considered inconsistent.
const centerTolerance = 1.0

// Validate checks the event completeness invariant: every viewport-bearing
// event must carry a mutually consistent bounds/center pair plus a genuine
// pyramid level, and click points appear only on click-driven kinds.
func (e *Event) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if e.SessionID == "" {
		return fmt.Errorf("event %s: missing session_id", e.Kind)
	}
	if e.Timestamp == "" || e.TimestampEpoch == 0 {
		return fmt.Errorf("event %s: missing timestamp", e.Kind)
	}
	if _, err := time.Parse(time.RFC3339, e.Timestamp); err != nil {
		return fmt.Errorf("event %s: bad timestamp: %w", e.Kind, err)
	}
	if e.AttemptNumber < 1 {
		return fmt.Errorf("event %s: attempt_number must be >= 1", e.Kind)
	}
	if e.ClickPoint != nil && !e.Kind.ClickDriven() {
		return fmt.Errorf("event %s: click_point on non-click event", e.Kind)
	}
	if e.Magnification != nil && !ValidMagnification(*e.Magnification) {
		return fmt.Errorf("event %s: magnification %v is not a ladder rung", e.Kind, *e.Magnification)
	}

	if e.Kind.Viewportless() {
		return nil
	}

	if e.ViewportBounds == nil || e.ViewportCenter == nil || e.PyramidLevel == nil {
		return fmt.Errorf("event %s: incomplete viewport snapshot", e.Kind)
	}
	b := *e.ViewportBounds
	if b.Width() <= 0 || b.Height() <= 0 {
		return fmt.Errorf("event %s: degenerate viewport bounds", e.Kind)
	}
	mid := b.Center()
	if math.Abs(mid.X-e.ViewportCenter.X) > centerTolerance ||
		math.Abs(mid.Y-e.ViewportCenter.Y) > centerTolerance {
		return fmt.Errorf("event %s: center (%.1f,%.1f) is not the bounds midpoint (%.1f,%.1f)",
			e.Kind, e.ViewportCenter.X, e.ViewportCenter.Y, mid.X, mid.Y)
	}
	return nil
}

// At stamps the event with t at millisecond precision.
func (e *Event) At(t time.Time) {
	t = t.Truncate(time.Millisecond)
	e.Timestamp = t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	e.TimestampEpoch = t.UnixMilli()
}
