// Package render defines the contract between the navigation/replay core
// and a deep-zoom rendering surface, plus a deterministic in-memory surface
// used by tests and headless replay.
package render

import (
	"context"

	"github.com/thebtf/slidetrace/pkg/models"
)

// Surface is a deep-zoom image viewer seen from the replay/recording core.
// Implementations frame by explicit image-space rectangles (bounds-fit) and
// report genuine render state back; the core never infers renderer state
// from nominal magnification.
//
// WaitSettled blocks until the surface has fully loaded tiles for the
// current framing, or the context is done. Callers wrap it with a timeout
// so a failed load degrades instead of hanging.
type Surface interface {
	// FitBounds frames the given image-space rectangle, expanded to the
	// surface's own aspect ratio. Resolution independent.
	FitBounds(ctx context.Context, b models.Bounds) error

	// Bounds returns the currently visible image-space rectangle.
	Bounds() models.Bounds

	// Center returns the midpoint of the visible rectangle.
	Center() models.Point

	// ImageZoom returns the current scale in device pixels per level-0
	// pixel.
	ImageZoom() float64

	// PyramidLevel returns the discrete pyramid level actually being
	// rendered.
	PyramidLevel() int

	// ContainerSize returns the surface's device-pixel dimensions.
	ContainerSize() (w, h float64)

	// WaitSettled blocks until the current framing is fully loaded.
	WaitSettled(ctx context.Context) error

	// Close tears the surface down. A surface must be closed before a new
	// one is created against the same container.
	Close() error
}
