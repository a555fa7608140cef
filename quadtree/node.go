package quadtree

// node is the recursive structure of the tree. It is implemented by exactly
// two variants: leaf, holding the values stored at a single coordinate, and
// inner, holding four children covering the quadrants of its region.
//
// Mutating operations return the node that must take the place of the
// receiver in its parent. It is the receiver itself unless a leaf split into
// an inner node or an inner node collapsed into an empty leaf.
type node[V any] interface {
	region() region
	isEmpty() bool
	lookup(p Point) []V
	insert(p Point, v V) node[V]
	delete(p Point) deleteResult[V]
	findNearest(q Point, h *nearestHeap[V], prune bool)
	walk(fn func(p Point, values []V) bool) bool
	collectStats(s *Stats, depth int)
}

type deleteResult[V any] struct {
	values  []V
	node    node[V]
	deleted bool
}

// region is the rectangle covered by a node, from its top-left (minimum)
// corner to its bottom-right (maximum) corner.
type region struct {
	leftTop     Point
	rightBottom Point
}

// center returns the split position of the region. Each coordinate lies in
// [min, max) unless min == max, so a split either separates two distinct
// coordinates or hands them a strictly smaller range.
func (r region) center() Point {
	c := r.leftTop.Midpoint(r.rightBottom)
	return Point{
		X: splitCoordinate(c.X, r.leftTop.X, r.rightBottom.X),
		Y: splitCoordinate(c.Y, r.leftTop.Y, r.rightBottom.Y),
	}
}

// splitCoordinate keeps a rounded midpoint within [min, max). Rounding can
// land the midpoint of two adjacent floats on max.
func splitCoordinate(mid, min, max float64) float64 {
	if mid < min {
		return min
	}
	if mid >= max && min < max {
		return min
	}
	return mid
}

// quadrants splits the region at its center. The order matches the child
// indexes of an inner node: top-left, top-right, bottom-left, bottom-right.
func (r region) quadrants() [4]region {
	c := r.center()

	return [4]region{
		{leftTop: r.leftTop, rightBottom: c},
		{leftTop: Point{X: c.X, Y: r.leftTop.Y}, rightBottom: Point{X: r.rightBottom.X, Y: c.Y}},
		{leftTop: Point{X: r.leftTop.X, Y: c.Y}, rightBottom: Point{X: c.X, Y: r.rightBottom.Y}},
		{leftTop: c, rightBottom: r.rightBottom},
	}
}

func (r region) contains(p Point) bool {
	return p.X >= r.leftTop.X && p.X <= r.rightBottom.X &&
		p.Y >= r.leftTop.Y && p.Y <= r.rightBottom.Y
}

func (r region) distanceTo(p Point) float64 {
	return p.ClampedDistanceToRect(r.leftTop.X, r.leftTop.Y, r.rightBottom.X, r.rightBottom.Y)
}

// Stats describes the shape of a tree.
type Stats struct {
	Leaves      int `json:"leaves"`
	EmptyLeaves int `json:"empty_leaves"`
	Inners      int `json:"inners"`
	Coordinates int `json:"coordinates"`
	Depth       int `json:"depth"`
}
