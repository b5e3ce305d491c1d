package ladder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/slidetrace/internal/geom"
	"github.com/thebtf/slidetrace/internal/recorder"
	"github.com/thebtf/slidetrace/internal/render"
	"github.com/thebtf/slidetrace/pkg/models"
)

// PanFraction is how far a single pan moves the center, as a fraction of
// the current viewport's image-space extent.
const PanFraction = 0.4

// DefaultSettleTimeout bounds how long a transition waits for tiles before
// snapshotting anyway.
const DefaultSettleTimeout = 3 * time.Second

// Direction is a pan direction.
type Direction int

const (
	PanLeft Direction = iota
	PanRight
	PanUp
	PanDown
)

// Navigator is the session-scoped navigation context: it owns the zoom
// ladder state, the history stack, and drives exactly one rendering surface.
// Construct one per (session, surface); destroy it before creating another
// against the same surface.
type Navigator struct {
	manifest      *models.SlideManifest
	surface       render.Surface
	rec           *recorder.Recorder
	history       *History
	rung          Rung
	settleTimeout time.Duration
}

// NewNavigator creates a navigator in the whole-slide fit state. Call Start
// to drive the surface there and log the opening events.
func NewNavigator(manifest *models.SlideManifest, surface render.Surface, rec *recorder.Recorder) *Navigator {
	return &Navigator{
		manifest:      manifest,
		surface:       surface,
		rec:           rec,
		history:       NewHistory(),
		rung:          RungFit,
		settleTimeout: DefaultSettleTimeout,
	}
}

// SetSettleTimeout overrides the settle wait bound.
func (n *Navigator) SetSettleTimeout(d time.Duration) { n.settleTimeout = d }

// Rung returns the current ladder state.
func (n *Navigator) Rung() Rung { return n.rung }

// HistoryDepth returns the undo stack depth.
func (n *Navigator) HistoryDepth() int { return n.history.Len() }

// settle waits for the surface to finish loading the current framing,
// bounded by the settle timeout. A timeout is logged and swallowed so the
// snapshot still reflects genuine (if partial) render state.
func (n *Navigator) settle(ctx context.Context) {
	sctx, cancel := context.WithTimeout(ctx, n.settleTimeout)
	defer cancel()
	if err := n.surface.WaitSettled(sctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Str("slideId", n.manifest.SlideID).Msg("Surface did not settle before snapshot")
	}
}

// fitWholeSlide frames the full slide.
func (n *Navigator) fitWholeSlide(ctx context.Context) error {
	return n.surface.FitBounds(ctx, n.manifest.FullBounds())
}

// fitRung frames the viewport for a magnification rung centered on center.
func (n *Navigator) fitRung(ctx context.Context, rung Rung, center models.Point) error {
	if rung.IsFit() {
		return n.fitWholeSlide(ctx)
	}
	cw, ch := n.surface.ContainerSize()
	return n.surface.FitBounds(ctx, geom.BoundsForMagnification(center, float64(rung), cw, ch))
}

// Start drives the surface to whole-slide fit and logs the session_start and
// slide_ready events.
func (n *Navigator) Start(ctx context.Context) error {
	if err := n.fitWholeSlide(ctx); err != nil {
		return fmt.Errorf("initial fit: %w", err)
	}
	if err := n.rec.Snapshot(ctx, models.KindSessionStart, recorder.SnapshotOpts{}); err != nil {
		return err
	}
	n.settle(ctx)
	return n.rec.Snapshot(ctx, models.KindSlideReady, recorder.SnapshotOpts{})
}

// ClickZoomIn advances one rung and recenters on the click point. Two events
// are logged: click_zoom_in at the pre-transition viewport (the context the
// user saw when deciding to click) and zoom_transition at the result. Clicks
// outside the slide are ignored with no event and no transition. At the
// terminal rung the viewport still recenters without a magnification change.
func (n *Navigator) ClickZoomIn(ctx context.Context, click models.Point) error {
	if !n.manifest.FullBounds().Contains(click) {
		log.Debug().
			Float64("x", click.X).
			Float64("y", click.Y).
			Str("slideId", n.manifest.SlideID).
			Msg("Click outside slide bounds ignored")
		return nil
	}

	if err := n.rec.Snapshot(ctx, models.KindClickZoomIn, recorder.SnapshotOpts{
		Magnification: n.rung.Magnification(),
		Click:         &click,
	}); err != nil {
		return err
	}

	n.history.Push(n.rung, n.surface.Center())
	next := n.rung.Next()

	cw, ch := n.surface.ContainerSize()
	target := geom.BoundsForMagnification(click, float64(next), cw, ch)
	center := geom.ClampCenter(click, target.Width(), target.Height(), n.manifest.Level0Width, n.manifest.Level0Height)
	if err := n.fitRung(ctx, next, center); err != nil {
		return fmt.Errorf("zoom fit: %w", err)
	}
	n.rung = next

	n.settle(ctx)
	return n.rec.Snapshot(ctx, models.KindZoomTransition, recorder.SnapshotOpts{
		Magnification: n.rung.Magnification(),
	})
}

// ZoomOutStep retreats one rung preserving the current center exactly. From
// the fit state it is a no-op; from the lowest magnification it returns to
// whole-slide fit framing.
func (n *Navigator) ZoomOutStep(ctx context.Context) error {
	if n.rung.IsFit() {
		return nil
	}
	n.history.Push(n.rung, n.surface.Center())
	prev := n.rung.Prev()
	if err := n.fitRung(ctx, prev, n.surface.Center()); err != nil {
		return fmt.Errorf("zoom out fit: %w", err)
	}
	n.rung = prev

	n.settle(ctx)
	return n.rec.Snapshot(ctx, models.KindZoomOutStep, recorder.SnapshotOpts{
		Magnification: n.rung.Magnification(),
	})
}

// Pan moves the viewport center by PanFraction of the current viewport's
// image-space extent, clamped to the slide. Panning the whole-slide fit is
// meaningless and ignored.
func (n *Navigator) Pan(ctx context.Context, dir Direction) error {
	if n.rung.IsFit() {
		return nil
	}
	n.history.Push(n.rung, n.surface.Center())

	view := n.surface.Bounds()
	center := view.Center()
	switch dir {
	case PanLeft:
		center.X -= view.Width() * PanFraction
	case PanRight:
		center.X += view.Width() * PanFraction
	case PanUp:
		center.Y -= view.Height() * PanFraction
	case PanDown:
		center.Y += view.Height() * PanFraction
	}
	center = geom.ClampCenter(center, view.Width(), view.Height(), n.manifest.Level0Width, n.manifest.Level0Height)

	if err := n.fitRung(ctx, n.rung, center); err != nil {
		return fmt.Errorf("pan fit: %w", err)
	}

	n.settle(ctx)
	return n.rec.Snapshot(ctx, models.KindPan, recorder.SnapshotOpts{
		Magnification: n.rung.Magnification(),
	})
}

// Undo pops the most recent history entry and restores exactly that
// (magnification, center). Restoring the start sentinel produces whole-slide
// fit framing. With an exhausted stack Undo is a no-op.
func (n *Navigator) Undo(ctx context.Context) error {
	entry, ok := n.history.Pop()
	if !ok {
		return nil
	}
	if entry.Start {
		if err := n.fitWholeSlide(ctx); err != nil {
			return fmt.Errorf("undo fit: %w", err)
		}
		n.rung = RungFit
	} else {
		if err := n.fitRung(ctx, entry.Rung, entry.Center); err != nil {
			return fmt.Errorf("undo fit: %w", err)
		}
		n.rung = entry.Rung
	}

	n.settle(ctx)
	return n.rec.Snapshot(ctx, models.KindUndoStep, recorder.SnapshotOpts{
		Magnification: n.rung.Magnification(),
	})
}

// Reset clears all history and returns unconditionally to whole-slide fit.
func (n *Navigator) Reset(ctx context.Context) error {
	n.history.Clear()
	if err := n.fitWholeSlide(ctx); err != nil {
		return fmt.Errorf("reset fit: %w", err)
	}
	n.rung = RungFit

	n.settle(ctx)
	return n.rec.Snapshot(ctx, models.KindResetToFit, recorder.SnapshotOpts{})
}

// ChooseLabel logs the terminal label event. No viewport change.
func (n *Navigator) ChooseLabel(ctx context.Context, ann models.Annotation) error {
	return n.rec.Snapshot(ctx, models.KindLabelChosen, recorder.SnapshotOpts{
		Annotation: &ann,
	})
}

// End logs the session_end event at the final viewport.
func (n *Navigator) End(ctx context.Context) error {
	return n.rec.Snapshot(ctx, models.KindSessionEnd, recorder.SnapshotOpts{
		Magnification: n.rung.Magnification(),
	})
}

// Close tears the navigator's surface down.
func (n *Navigator) Close() error {
	return n.surface.Close()
}
