package model

import "math"

// Position represents 2D arena coordinates.
// Value type, passed by copy (immutable).
type Position struct {
	X float64
	Y float64
}

// NewPosition creates a Position at the given coordinates.
func NewPosition(x, y float64) Position {
	return Position{X: x, Y: y}
}

// Distance returns the euclidean distance to another point.
func (p Position) Distance(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// DistanceSquared returns the squared distance (no sqrt for hot paths).
func (p Position) DistanceSquared(other Position) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return dx*dx + dy*dy
}
