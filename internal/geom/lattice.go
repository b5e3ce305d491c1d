package geom

import (
	"math"

	"github.com/thebtf/slidetrace/pkg/models"
)

// Patch lattice math. The tiling pipeline lays a fixed grid of patch cells
// over the slide, anchored at (0,0) with no rotation, in level-0 pixels.

// CellIndex converts level-0 coordinates to grid cell indices (column, row).
func CellIndex(x0, y0, cellSize float64) (int, int) {
	return int(math.Floor(x0 / cellSize)), int(math.Floor(y0 / cellSize))
}

// CellCenter returns the center of grid cell (i, j) in level-0 pixels.
func CellCenter(i, j int, cellSize float64) models.Point {
	return models.Point{
		X: (float64(i) + 0.5) * cellSize,
		Y: (float64(j) + 0.5) * cellSize,
	}
}

// IsEdgeCell reports whether cell (i, j) extends past the slide bounds, i.e.
// the cell is only partially covered by tissue-bearing pixels.
func IsEdgeCell(i, j int, level0Width, level0Height int64, cellSize float64) bool {
	right := float64(i+1) * cellSize
	bottom := float64(j+1) * cellSize
	return i < 0 || j < 0 || right > float64(level0Width) || bottom > float64(level0Height)
}
