package replay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/slidetrace/internal/render"
	"github.com/thebtf/slidetrace/pkg/models"
)

func replayManifest() *models.SlideManifest {
	return &models.SlideManifest{
		SlideID:      "slide-a",
		Level0Width:  40000,
		Level0Height: 30000,
		PatchPx:      512,
		TileSize:     254,
		Overlap:      1,
	}
}

func viewportEvent(kind models.EventKind, b models.Bounds, at time.Time) models.Event {
	center := b.Center()
	level := 5
	ev := models.Event{
		SessionID:      "sess-1",
		UserID:         "user-1",
		SlideID:        "slide-a",
		Kind:           kind,
		ViewportBounds: &b,
		ViewportCenter: &center,
		PyramidLevel:   &level,
		AttemptNumber:  1,
	}
	ev.At(at)
	return ev
}

// fourStepTrace is the canonical open, zoom, pan, close sequence.
func fourStepTrace() []models.Event {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return []models.Event{
		viewportEvent(models.KindSessionStart,
			models.Bounds{Left: 0, Top: 0, Right: 40000, Bottom: 30000}, base),
		viewportEvent(models.KindZoomTransition,
			models.Bounds{Left: 12000, Top: 9000, Right: 20000, Bottom: 15000}, base.Add(time.Second)),
		viewportEvent(models.KindPan,
			models.Bounds{Left: 15200, Top: 9000, Right: 23200, Bottom: 15000}, base.Add(2*time.Second)),
		viewportEvent(models.KindSessionEnd,
			models.Bounds{Left: 15200, Top: 9000, Right: 23200, Bottom: 15000}, base.Add(3*time.Second)),
	}
}

func replayAll(t *testing.T, events []models.Event, width, height float64) []Frame {
	t.Helper()
	manifest := replayManifest()
	surface := render.NewFake(manifest, width, height)
	engine, err := NewEngine(events, manifest, surface)
	require.NoError(t, err)

	frames := make([]Frame, engine.Len())
	for i := 0; i < engine.Len(); i++ {
		frame, err := engine.Apply(context.Background(), i)
		require.NoError(t, err)
		frames[i] = frame
	}
	return frames
}

func TestReplayFourStepTrace(t *testing.T) {
	frames := replayAll(t, fourStepTrace(), 1600, 900)

	// The opening frame shows the whole slide.
	assert.LessOrEqual(t, frames[0].Viewport.Left, 0.0)
	assert.GreaterOrEqual(t, frames[0].Viewport.Right, 40000.0)

	// Each subsequent frame contains exactly the logged rectangle, possibly
	// widened to the container aspect around the same center.
	zoomed := models.Bounds{Left: 12000, Top: 9000, Right: 20000, Bottom: 15000}
	assert.InDelta(t, zoomed.Center().X, frames[1].Viewport.Center().X, 1.0)
	assert.InDelta(t, zoomed.Center().Y, frames[1].Viewport.Center().Y, 1.0)
	assert.GreaterOrEqual(t, frames[1].Viewport.Width()+1e-6, zoomed.Width())
	assert.GreaterOrEqual(t, frames[1].Viewport.Height()+1e-6, zoomed.Height())

	panned := models.Bounds{Left: 15200, Top: 9000, Right: 23200, Bottom: 15000}
	assert.InDelta(t, panned.Center().X, frames[2].Viewport.Center().X, 1.0)

	// The terminal event leaves the final framing in place.
	assert.True(t, frames[3].Viewport.ApproxEqual(frames[2].Viewport, 1e-6))
	for _, f := range frames {
		assert.False(t, f.Degraded)
	}
}

func TestReplayDeterministicAcrossContainers(t *testing.T) {
	events := fourStepTrace()

	// Same trace, wildly different container geometries: every frame must
	// contain the identical logged rectangle, centered identically.
	sizes := [][2]float64{{1600, 900}, {1024, 768}, {800, 1200}, {3840, 2160}}
	var reference []Frame
	for _, size := range sizes {
		frames := replayAll(t, events, size[0], size[1])
		if reference == nil {
			reference = frames
			continue
		}
		for i := range frames {
			want := events[i].ViewportBounds
			got := frames[i].Viewport
			assert.InDelta(t, want.Center().X, got.Center().X, 1.0, "frame %d", i)
			assert.InDelta(t, want.Center().Y, got.Center().Y, 1.0, "frame %d", i)
			assert.GreaterOrEqual(t, got.Width()+1e-6, want.Width(), "frame %d", i)
			assert.GreaterOrEqual(t, got.Height()+1e-6, want.Height(), "frame %d", i)
		}
	}
}

func TestReplayClickEventMarksWithoutMoving(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	click := viewportEvent(models.KindClickZoomIn,
		models.Bounds{Left: 0, Top: 0, Right: 40000, Bottom: 30000}, base.Add(time.Second))
	mag := 2.5
	click.Magnification = &mag
	click.ClickPoint = &models.Point{X: 15000, Y: 12000}

	events := []models.Event{
		viewportEvent(models.KindSessionStart,
			models.Bounds{Left: 0, Top: 0, Right: 40000, Bottom: 30000}, base),
		click,
		viewportEvent(models.KindZoomTransition,
			models.Bounds{Left: 12000, Top: 9000, Right: 18000, Bottom: 15000}, base.Add(2*time.Second)),
	}

	manifest := replayManifest()
	surface := render.NewFake(manifest, 1600, 900)
	engine, err := NewEngine(events, manifest, surface)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = engine.Apply(ctx, 0)
	require.NoError(t, err)
	before := surface.Bounds()

	frame, err := engine.Apply(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, frame.Marker)
	assert.Equal(t, models.Point{X: 15000, Y: 12000}, *frame.Marker)
	// The click itself changes nothing; the transition that follows does.
	assert.True(t, surface.Bounds().ApproxEqual(before, 1e-9))

	frame, err = engine.Apply(ctx, 2)
	require.NoError(t, err)
	assert.False(t, surface.Bounds().ApproxEqual(before, 1.0))
	assert.Nil(t, frame.Marker)
}

func TestReplayDegradedLegacyEvent(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	// An event logged before bounds capture: center and nominal zoom only.
	legacy := models.Event{
		SessionID:      "sess-1",
		Kind:           models.KindZoomTransition,
		ViewportCenter: &models.Point{X: 20000, Y: 15000},
		AttemptNumber:  1,
	}
	mag := 10.0
	legacy.Magnification = &mag
	legacy.At(base.Add(time.Second))

	events := []models.Event{
		viewportEvent(models.KindSessionStart,
			models.Bounds{Left: 0, Top: 0, Right: 40000, Bottom: 30000}, base),
		legacy,
	}

	manifest := replayManifest()
	surface := render.NewFake(manifest, 1600, 900)
	engine, err := NewEngine(events, manifest, surface)
	require.NoError(t, err)

	frame, err := engine.Apply(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, frame.Degraded)
	assert.InDelta(t, 20000, frame.Viewport.Center().X, 1.0)
	assert.InDelta(t, 15000, frame.Viewport.Center().Y, 1.0)
}

func TestReplayLabelEvent(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	label := models.Event{
		SessionID:     "sess-1",
		Kind:          models.KindLabelChosen,
		AttemptNumber: 1,
		Annotation:    &models.Annotation{Label: "benign"},
	}
	label.At(base.Add(time.Second))

	events := []models.Event{
		viewportEvent(models.KindSessionStart,
			models.Bounds{Left: 0, Top: 0, Right: 40000, Bottom: 30000}, base),
		label,
	}

	frames := replayAll(t, events, 1600, 900)
	require.NotNil(t, frames[1].Label)
	assert.Equal(t, "benign", frames[1].Label.Label)
}

func TestNewEngineRejectsOutOfOrderEvents(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	events := []models.Event{
		viewportEvent(models.KindSessionStart,
			models.Bounds{Left: 0, Top: 0, Right: 40000, Bottom: 30000}, base.Add(time.Second)),
		viewportEvent(models.KindPan,
			models.Bounds{Left: 0, Top: 0, Right: 40000, Bottom: 30000}, base),
	}

	manifest := replayManifest()
	_, err := NewEngine(events, manifest, render.NewFake(manifest, 1600, 900))
	assert.Error(t, err)
}

func TestApplyIndexOutOfRange(t *testing.T) {
	manifest := replayManifest()
	engine, err := NewEngine(fourStepTrace(), manifest, render.NewFake(manifest, 1600, 900))
	require.NoError(t, err)

	_, err = engine.Apply(context.Background(), -1)
	assert.Error(t, err)
	_, err = engine.Apply(context.Background(), engine.Len())
	assert.Error(t, err)
}

func TestClickPathsSegmentation(t *testing.T) {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	full := models.Bounds{Left: 0, Top: 0, Right: 40000, Bottom: 30000}

	clickAt := func(x, y float64, at time.Time) models.Event {
		ev := viewportEvent(models.KindClickZoomIn, full, at)
		mag := 2.5
		ev.Magnification = &mag
		ev.ClickPoint = &models.Point{X: x, Y: y}
		return ev
	}

	events := []models.Event{
		viewportEvent(models.KindSessionStart, full, base),
		viewportEvent(models.KindSlideReady, full, base.Add(100*time.Millisecond)),
		clickAt(1000, 1000, base.Add(time.Second)),
		clickAt(2000, 2000, base.Add(2*time.Second)),
		viewportEvent(models.KindResetToFit, full, base.Add(3*time.Second)),
		clickAt(5000, 5000, base.Add(4*time.Second)),
		viewportEvent(models.KindSessionEnd, full, base.Add(5*time.Second)),
	}

	paths := ClickPaths(events)
	require.Len(t, paths, 2)
	assert.Equal(t, []models.Point{{X: 1000, Y: 1000}, {X: 2000, Y: 2000}}, paths[0])
	assert.Equal(t, []models.Point{{X: 5000, Y: 5000}}, paths[1])
}

func TestClickPathsEmpty(t *testing.T) {
	assert.Empty(t, ClickPaths(nil))

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	full := models.Bounds{Left: 0, Top: 0, Right: 40000, Bottom: 30000}
	events := []models.Event{
		viewportEvent(models.KindSessionStart, full, base),
		viewportEvent(models.KindSessionEnd, full, base.Add(time.Second)),
	}
	assert.Empty(t, ClickPaths(events))
}
