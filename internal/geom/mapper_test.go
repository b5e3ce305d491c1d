package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thebtf/slidetrace/pkg/models"
)

func TestFitToAspect_WidensNarrowBounds(t *testing.T) {
	b := models.Bounds{Left: 1000, Top: 1000, Right: 1500, Bottom: 2000}

	// 2:1 container must widen the rectangle around its center.
	got := FitToAspect(b, 2.0)

	assert.InDelta(t, 2.0, got.Width()/got.Height(), 1e-9)
	assert.Equal(t, b.Center(), got.Center())
	assert.InDelta(t, b.Height(), got.Height(), 1e-9)
}

func TestFitToAspect_HeightensWideBounds(t *testing.T) {
	b := models.Bounds{Left: 0, Top: 0, Right: 4000, Bottom: 1000}

	got := FitToAspect(b, 1.0)

	assert.InDelta(t, 1.0, got.Width()/got.Height(), 1e-9)
	assert.Equal(t, b.Center(), got.Center())
	assert.InDelta(t, b.Width(), got.Width(), 1e-9)
}

func TestFitToAspect_ResolutionIndependent(t *testing.T) {
	// Two containers with the same aspect ratio but different pixel sizes
	// must show the identical image-space rectangle.
	b := models.Bounds{Left: 250, Top: 600, Right: 1250, Bottom: 1400}

	small := FitToAspect(b, 800.0/600.0)
	large := FitToAspect(b, 1600.0/1200.0)

	assert.True(t, small.ApproxEqual(large, 1e-9))
}

func TestWholeSlideFit_ContainsFullSlide(t *testing.T) {
	got := WholeSlideFit(100000, 80000, 16.0/9.0)

	assert.LessOrEqual(t, got.Left, 0.0)
	assert.LessOrEqual(t, got.Top, 0.0)
	assert.GreaterOrEqual(t, got.Right, 100000.0)
	assert.GreaterOrEqual(t, got.Bottom, 80000.0)
	assert.InDelta(t, 16.0/9.0, got.Width()/got.Height(), 1e-9)
}

func TestBoundsForMagnification(t *testing.T) {
	center := models.Point{X: 5000, Y: 5000}

	// At 40x one device pixel is one level-0 pixel.
	got := BoundsForMagnification(center, 40, 1024, 768)
	assert.InDelta(t, 1024, got.Width(), 1e-9)
	assert.InDelta(t, 768, got.Height(), 1e-9)
	assert.Equal(t, center, got.Center())

	// At 10x the viewport covers 4x the level-0 extent.
	got = BoundsForMagnification(center, 10, 1024, 768)
	assert.InDelta(t, 4096, got.Width(), 1e-9)
}

func TestPyramidLevel(t *testing.T) {
	tests := []struct {
		name     string
		zoom     float64
		maxLevel int
		want     int
	}{
		{"full resolution", 1.0, 17, 17},
		{"half resolution", 0.5, 17, 16},
		{"quarter resolution", 0.25, 17, 15},
		{"rounds to nearest", 0.7, 17, 17}, // log2(0.7) ~ -0.51
		{"clamps below zero", 1e-9, 17, 0},
		{"clamps above max", 8.0, 17, 17},
		{"zero zoom", 0, 17, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PyramidLevel(tt.zoom, tt.maxLevel))
		})
	}
}

func TestClampCenter(t *testing.T) {
	tests := []struct {
		name   string
		center models.Point
		vw, vh float64
		want   models.Point
	}{
		{"inside stays put", models.Point{X: 5000, Y: 5000}, 1000, 800, models.Point{X: 5000, Y: 5000}},
		{"clamped at left edge", models.Point{X: 100, Y: 5000}, 1000, 800, models.Point{X: 500, Y: 5000}},
		{"clamped at bottom right", models.Point{X: 9990, Y: 7990}, 1000, 800, models.Point{X: 9500, Y: 7600}},
		{"viewport wider than slide centers", models.Point{X: 2000, Y: 4000}, 20000, 800, models.Point{X: 5000, Y: 4000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClampCenter(tt.center, tt.vw, tt.vh, 10000, 8000)
			assert.InDelta(t, tt.want.X, got.X, 1e-9)
			assert.InDelta(t, tt.want.Y, got.Y, 1e-9)
		})
	}
}

func TestScreenImageRoundTrip(t *testing.T) {
	visible := models.Bounds{Left: 1000, Top: 2000, Right: 3000, Bottom: 3500}

	img := ScreenToImage(models.Point{X: 512, Y: 384}, visible, 1024, 768)
	assert.InDelta(t, 2000, img.X, 1e-9)
	assert.InDelta(t, 2750, img.Y, 1e-9)

	back := ImageToScreen(img, visible, 1024, 768)
	assert.InDelta(t, 512, back.X, 1e-9)
	assert.InDelta(t, 384, back.Y, 1e-9)
}

func TestViewportConversionRoundTrip(t *testing.T) {
	p := models.Point{X: 51234, Y: 20480}

	norm := ImageToViewport(p, 100000)
	back := ViewportToImage(norm, 100000)

	assert.InDelta(t, p.X, back.X, 1e-6)
	assert.InDelta(t, p.Y, back.Y, 1e-6)
}

func TestLattice(t *testing.T) {
	i, j := CellIndex(512.5, 768.3, 256)
	assert.Equal(t, 2, i)
	assert.Equal(t, 3, j)

	c := CellCenter(2, 3, 256)
	assert.Equal(t, models.Point{X: 640, Y: 896}, c)

	assert.False(t, IsEdgeCell(0, 0, 1000, 1000, 256))
	assert.True(t, IsEdgeCell(3, 0, 1000, 1000, 256)) // 4*256 > 1000
	assert.True(t, IsEdgeCell(-1, 0, 1000, 1000, 256))
}
