package quadtree

import "math"

// Point is a coordinate in the index domain.
type Point struct {
	X float64
	Y float64
}

func NewPoint(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) Equal(o Point) bool {
	return p.X == o.X && p.Y == o.Y
}

// Midpoint returns the component-wise average of p and o. Halves are added so
// that the average of two finite coordinates stays finite.
func (p Point) Midpoint(o Point) Point {
	return Point{
		X: p.X/2 + o.X/2,
		Y: p.Y/2 + o.Y/2,
	}
}

func (p Point) Distance(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// ClampedDistanceToRect returns the distance between p and the closest
// position inside the given rectangle. It is zero when p is inside.
func (p Point) ClampedDistanceToRect(minX, minY, maxX, maxY float64) float64 {
	target := Point{
		X: clamp(p.X, minX, maxX),
		Y: clamp(p.Y, minY, maxY),
	}
	return p.Distance(target)
}

func clamp(v, min, max float64) float64 {
	if v <= min {
		return min
	}
	if v >= max {
		return max
	}
	return v
}
