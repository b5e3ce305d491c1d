package models

import "math"

// SlideManifest describes one tiled slide: the lattice parameters written by
// the tiling pipeline alongside the DeepZoom pyramid. It is the single
// source of truth the viewer and the replay engine share.
type SlideManifest struct {
	SlideID      string   `json:"slide_id"`
	Level0Width  int64    `json:"level0_width"`
	Level0Height int64    `json:"level0_height"`
	MPP0         *float64 `json:"mpp0"` // microns per pixel at level 0, null if unknown
	PatchPx      int      `json:"patch_px"`
	TileSize     int      `json:"tile_size"`
	Overlap      int      `json:"overlap"`
	Anchor       [2]int   `json:"anchor"`
	AlignmentOK  bool     `json:"alignment_ok"`
	CreatedAt    string   `json:"created_at"`
}

// MaxLevel returns the deepest DeepZoom pyramid level: ceil(log2(maxDim)).
// Level MaxLevel renders at full (level-0) resolution.
func (m *SlideManifest) MaxLevel() int {
	d := m.Level0Width
	if m.Level0Height > d {
		d = m.Level0Height
	}
	if d <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(d))))
}

// FullBounds returns the whole-slide rectangle in level-0 pixels.
func (m *SlideManifest) FullBounds() Bounds {
	return Bounds{Left: 0, Top: 0, Right: float64(m.Level0Width), Bottom: float64(m.Level0Height)}
}
