package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEvent(kind EventKind) Event {
	b := Bounds{Left: 1000, Top: 2000, Right: 5000, Bottom: 5000}
	center := b.Center()
	level := 6
	ev := Event{
		SessionID:      "sess-1",
		UserID:         "user-1",
		SlideID:        "slide-a",
		Kind:           kind,
		ViewportBounds: &b,
		ViewportCenter: &center,
		PyramidLevel:   &level,
		AttemptNumber:  1,
	}
	ev.At(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	return ev
}

func TestEventKindValid(t *testing.T) {
	for _, k := range Kinds {
		assert.True(t, k.Valid(), string(k))
	}
	assert.False(t, EventKind("double_click").Valid())
	assert.False(t, EventKind("").Valid())
}

func TestValidate_TableDriven(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Event)
		wantErr bool
	}{
		{"valid viewport event", func(e *Event) {}, false},
		{"unknown kind", func(e *Event) { e.Kind = "hover" }, true},
		{"missing session", func(e *Event) { e.SessionID = "" }, true},
		{"missing timestamp", func(e *Event) { e.Timestamp = "" }, true},
		{"garbage timestamp", func(e *Event) { e.Timestamp = "yesterday" }, true},
		{"zero attempt", func(e *Event) { e.AttemptNumber = 0 }, true},
		{"missing bounds", func(e *Event) { e.ViewportBounds = nil }, true},
		{"missing center", func(e *Event) { e.ViewportCenter = nil }, true},
		{"missing level", func(e *Event) { e.PyramidLevel = nil }, true},
		{"degenerate bounds", func(e *Event) {
			e.ViewportBounds = &Bounds{Left: 10, Top: 10, Right: 10, Bottom: 20}
		}, true},
		{"center off midpoint", func(e *Event) {
			e.ViewportCenter = &Point{X: e.ViewportCenter.X + 5, Y: e.ViewportCenter.Y}
		}, true},
		{"center within tolerance", func(e *Event) {
			e.ViewportCenter = &Point{X: e.ViewportCenter.X + 0.5, Y: e.ViewportCenter.Y}
		}, false},
		{"off-ladder magnification", func(e *Event) {
			m := 3.0
			e.Magnification = &m
		}, true},
		{"ladder magnification", func(e *Event) {
			m := 10.0
			e.Magnification = &m
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validEvent(KindPan)
			tt.mutate(&ev)
			err := ev.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateClickPointPlacement(t *testing.T) {
	// Click points belong to click events only.
	ev := validEvent(KindPan)
	ev.ClickPoint = &Point{X: 1, Y: 2}
	assert.Error(t, ev.Validate())

	ev = validEvent(KindClickZoomIn)
	ev.ClickPoint = &Point{X: 1, Y: 2}
	assert.NoError(t, ev.Validate())
}

func TestValidateViewportlessEvent(t *testing.T) {
	// Label events carry no viewport snapshot at all.
	ev := Event{
		SessionID:     "sess-1",
		Kind:          KindLabelChosen,
		AttemptNumber: 1,
		Annotation:    &Annotation{Label: "benign"},
	}
	ev.At(time.Now())
	assert.NoError(t, ev.Validate())

	// Every other kind must carry one.
	ev.Kind = KindSessionEnd
	assert.Error(t, ev.Validate())
}

func TestAtFormatsMillisecondUTC(t *testing.T) {
	var ev Event
	ev.At(time.Date(2026, 3, 10, 14, 30, 45, 123456789, time.FixedZone("CET", 3600)))

	assert.Equal(t, "2026-03-10T13:30:45.123Z", ev.Timestamp)
	assert.Equal(t, int64(1773149445123), ev.TimestampEpoch)

	parsed, err := time.Parse(time.RFC3339, ev.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, parsed.UnixMilli(), ev.TimestampEpoch)
}

func TestBoundsGeometry(t *testing.T) {
	b := Bounds{Left: 100, Top: 200, Right: 500, Bottom: 600}
	assert.Equal(t, 400.0, b.Width())
	assert.Equal(t, 400.0, b.Height())
	assert.Equal(t, Point{X: 300, Y: 400}, b.Center())

	assert.True(t, b.Contains(Point{X: 300, Y: 400}))
	assert.True(t, b.Contains(Point{X: 100, Y: 200}))
	assert.False(t, b.Contains(Point{X: 99, Y: 400}))
	assert.False(t, b.Contains(Point{X: 300, Y: 601}))

	assert.True(t, b.ApproxEqual(Bounds{Left: 100.4, Top: 200, Right: 500, Bottom: 599.6}, 0.5))
	assert.False(t, b.ApproxEqual(Bounds{Left: 102, Top: 200, Right: 500, Bottom: 600}, 0.5))

	assert.True(t, Bounds{}.IsZero())
	assert.False(t, b.IsZero())
}

func TestManifestMaxLevel(t *testing.T) {
	tests := []struct {
		w, h int64
		want int
	}{
		{1, 1, 0},
		{2, 2, 1},
		{256, 256, 8},
		{257, 100, 9},
		{40000, 30000, 16},
		{80000, 60000, 17},
	}
	for _, tt := range tests {
		m := SlideManifest{Level0Width: tt.w, Level0Height: tt.h}
		assert.Equal(t, tt.want, m.MaxLevel(), "dims %dx%d", tt.w, tt.h)
	}
}
