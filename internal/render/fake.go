package render

import (
	"context"
	"sync"
	"time"

	"github.com/thebtf/slidetrace/internal/errs"
	"github.com/thebtf/slidetrace/internal/geom"
	"github.com/thebtf/slidetrace/pkg/models"
)

// Fake is a deterministic in-memory Surface. It applies the same bounds-fit
// math a real deep-zoom viewer performs, so tests and headless replay see
// genuine viewport state: fitted bounds, derived zoom and a real pyramid
// level. Settle latency and failures are injectable.
type Fake struct {
	mu       sync.Mutex
	manifest *models.SlideManifest
	width    float64
	height   float64
	visible  models.Bounds
	closed   bool

	// SettleDelay delays WaitSettled; FailSettle makes it report a render
	// failure after the delay. Both are read under the lock.
	SettleDelay time.Duration
	FailSettle  bool

	fits []models.Bounds
}

// NewFake creates a fake surface of the given device-pixel size, initially
// framing the whole slide.
func NewFake(manifest *models.SlideManifest, width, height float64) *Fake {
	f := &Fake{
		manifest: manifest,
		width:    width,
		height:   height,
	}
	f.visible = geom.WholeSlideFit(manifest.Level0Width, manifest.Level0Height, f.aspect())
	return f
}

func (f *Fake) aspect() float64 {
	if f.height == 0 {
		return 1
	}
	return f.width / f.height
}

// FitBounds frames the rectangle, expanded to the container aspect.
func (f *Fake) FitBounds(_ context.Context, b models.Bounds) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errs.ErrRenderTimeout
	}
	f.visible = geom.FitToAspect(b, f.aspect())
	f.fits = append(f.fits, f.visible)
	return nil
}

// Bounds returns the visible image-space rectangle.
func (f *Fake) Bounds() models.Bounds {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible
}

// Center returns the midpoint of the visible rectangle.
func (f *Fake) Center() models.Point {
	return f.Bounds().Center()
}

// ImageZoom returns device pixels per level-0 pixel for the current framing.
func (f *Fake) ImageZoom() float64 {
	b := f.Bounds()
	if b.Width() == 0 {
		return 0
	}
	f.mu.Lock()
	w := f.width
	f.mu.Unlock()
	return w / b.Width()
}

// PyramidLevel derives the rendered level from the genuine current zoom.
func (f *Fake) PyramidLevel() int {
	return geom.PyramidLevel(f.ImageZoom(), f.manifest.MaxLevel())
}

// ContainerSize returns the device-pixel dimensions of the surface.
func (f *Fake) ContainerSize() (float64, float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.width, f.height
}

// WaitSettled waits for the configured delay, honoring ctx cancellation.
func (f *Fake) WaitSettled(ctx context.Context) error {
	f.mu.Lock()
	delay := f.SettleDelay
	fail := f.FailSettle
	f.mu.Unlock()

	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}
	if fail {
		return errs.ErrRenderTimeout
	}
	return nil
}

// Close marks the surface torn down; further fits fail.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// FitHistory returns every rectangle the surface was driven through, in
// order. Test hook.
func (f *Fake) FitHistory() []models.Bounds {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Bounds, len(f.fits))
	copy(out, f.fits)
	return out
}

var _ Surface = (*Fake)(nil)
