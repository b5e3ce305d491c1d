package models

import "math"

// Point is a position in level-0 (full resolution) image pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds is an image-space rectangle in level-0 pixels.
// Left/Top is the minimum corner, Right/Bottom the maximum.
type Bounds struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Width returns the horizontal extent of the rectangle.
func (b Bounds) Width() float64 { return b.Right - b.Left }

// Height returns the vertical extent of the rectangle.
func (b Bounds) Height() float64 { return b.Bottom - b.Top }

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() Point {
	return Point{X: (b.Left + b.Right) / 2, Y: (b.Top + b.Bottom) / 2}
}

// Contains reports whether p lies inside the rectangle (inclusive).
func (b Bounds) Contains(p Point) bool {
	return p.X >= b.Left && p.X <= b.Right && p.Y >= b.Top && p.Y <= b.Bottom
}

// IsZero reports whether the rectangle is the zero value.
func (b Bounds) IsZero() bool {
	return b.Left == 0 && b.Top == 0 && b.Right == 0 && b.Bottom == 0
}

// ApproxEqual reports whether two rectangles match within tol pixels on
// every edge. Replay determinism checks compare rectangles this way since
// fitting math goes through floating point.
func (b Bounds) ApproxEqual(o Bounds, tol float64) bool {
	return math.Abs(b.Left-o.Left) <= tol &&
		math.Abs(b.Top-o.Top) <= tol &&
		math.Abs(b.Right-o.Right) <= tol &&
		math.Abs(b.Bottom-o.Bottom) <= tol
}
