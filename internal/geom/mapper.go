// Package geom converts between the three coordinate spaces of the viewer:
// device/screen pixels, normalized viewport space, and level-0 image pixels.
// All functions are pure; replay determinism depends on that.
package geom

import (
	"math"

	"github.com/thebtf/slidetrace/pkg/models"
)

// BaseMagnification is the nominal objective power of the level-0 scan.
// Slides are scanned at 40x; every coordinate in the system is expressed in
// level-0 pixels of that scan.
const BaseMagnification = 40.0

// FitToAspect expands an image-space rectangle minimally around its center
// so its aspect ratio matches the container's width/height ratio. This is
// the bounds-fit primitive: the returned rectangle is exactly what a
// container of that aspect shows when asked to frame b, independent of the
// container's physical pixel size.
func FitToAspect(b models.Bounds, aspect float64) models.Bounds {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 || aspect <= 0 {
		return b
	}
	c := b.Center()
	if w/h < aspect {
		w = h * aspect
	} else {
		h = w / aspect
	}
	return models.Bounds{
		Left:   c.X - w/2,
		Top:    c.Y - h/2,
		Right:  c.X + w/2,
		Bottom: c.Y + h/2,
	}
}

// WholeSlideFit returns the visible rectangle for a whole-slide fit of a
// slide with the given level-0 dimensions in a container of the given
// aspect ratio.
func WholeSlideFit(level0Width, level0Height int64, aspect float64) models.Bounds {
	full := models.Bounds{Right: float64(level0Width), Bottom: float64(level0Height)}
	return FitToAspect(full, aspect)
}

// BoundsForMagnification computes the image-space rectangle shown when a
// container of containerW x containerH device pixels is centered on center
// at the given nominal magnification. One device pixel maps to
// BaseMagnification/mag level-0 pixels. This reconstruction is lossy across
// differing container sizes; it exists for live navigation (where the
// container is known) and as the degraded fallback for legacy events that
// were recorded without explicit bounds.
func BoundsForMagnification(center models.Point, mag float64, containerW, containerH float64) models.Bounds {
	scale := BaseMagnification / mag
	w := containerW * scale
	h := containerH * scale
	return models.Bounds{
		Left:   center.X - w/2,
		Top:    center.Y - h/2,
		Right:  center.X + w/2,
		Bottom: center.Y + h/2,
	}
}

// PyramidLevel derives the discrete DeepZoom level actually rendered at a
// given image zoom (screen pixels per level-0 pixel): maxLevel + log2(zoom),
// rounded and clamped to the valid range. The fit pseudo-level therefore
// comes from genuine renderer state, never from the nominal magnification.
func PyramidLevel(imageZoom float64, maxLevel int) int {
	if imageZoom <= 0 {
		return 0
	}
	level := int(math.Round(float64(maxLevel) + math.Log2(imageZoom)))
	if level < 0 {
		level = 0
	}
	if level > maxLevel {
		level = maxLevel
	}
	return level
}

// ClampCenter keeps a viewport of viewW x viewH level-0 pixels inside the
// slide: clamped per axis when the slide is larger than the viewport,
// centered on the slide when it is smaller.
func ClampCenter(center models.Point, viewW, viewH float64, level0Width, level0Height int64) models.Point {
	sw, sh := float64(level0Width), float64(level0Height)
	out := center
	if viewW >= sw {
		out.X = sw / 2
	} else {
		out.X = math.Min(math.Max(out.X, viewW/2), sw-viewW/2)
	}
	if viewH >= sh {
		out.Y = sh / 2
	} else {
		out.Y = math.Min(math.Max(out.Y, viewH/2), sh-viewH/2)
	}
	return out
}

// ImageToViewport converts a level-0 point to normalized viewport space.
// Normalized coordinates divide both axes by the image width, matching the
// deep-zoom viewer convention.
func ImageToViewport(p models.Point, level0Width int64) models.Point {
	w := float64(level0Width)
	if w == 0 {
		return models.Point{}
	}
	return models.Point{X: p.X / w, Y: p.Y / w}
}

// ViewportToImage converts a normalized viewport point back to level-0
// pixels.
func ViewportToImage(p models.Point, level0Width int64) models.Point {
	w := float64(level0Width)
	return models.Point{X: p.X * w, Y: p.Y * w}
}

// ScreenToImage converts a device-pixel position inside a container showing
// the rectangle visible to the level-0 point under it.
func ScreenToImage(screen models.Point, visible models.Bounds, containerW, containerH float64) models.Point {
	if containerW == 0 || containerH == 0 {
		return models.Point{}
	}
	return models.Point{
		X: visible.Left + screen.X/containerW*visible.Width(),
		Y: visible.Top + screen.Y/containerH*visible.Height(),
	}
}

// ImageToScreen is the inverse of ScreenToImage.
func ImageToScreen(image models.Point, visible models.Bounds, containerW, containerH float64) models.Point {
	if visible.Width() == 0 || visible.Height() == 0 {
		return models.Point{}
	}
	return models.Point{
		X: (image.X - visible.Left) / visible.Width() * containerW,
		Y: (image.Y - visible.Top) / visible.Height() * containerH,
	}
}
