// Package quadtree implements a region quadtree indexing values by 2D points
// inside a fixed rectangular domain.
//
// The tree supports insertion, exact point lookup, deletion and exact k
// nearest neighbors queries. Leaves split lazily when a second distinct
// coordinate lands in them, and inner nodes collapse back into a leaf when
// their four children become empty.
//
// A Quadtree is not safe for concurrent use.
package quadtree

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Domain is the rectangle of valid coordinates, bounds included.
type Domain struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

func (d Domain) Contains(x, y float64) bool {
	return x >= d.MinX && x <= d.MaxX && y >= d.MinY && y <= d.MaxY
}

// Validate returns an invalid_domain error when a bound is not finite or a
// minimum is greater than its maximum.
func (d Domain) Validate() error {
	if !isFinite(d.MinX) || !isFinite(d.MinY) || !isFinite(d.MaxX) || !isFinite(d.MaxY) {
		return errors.New("domain bound is not a finite number").
			WithType(ErrTypeInvalidDomain).
			WithTag("domain", d)
	}

	if d.MinX > d.MaxX || d.MinY > d.MaxY {
		return errors.New("domain minimum is greater than its maximum").
			WithType(ErrTypeInvalidDomain).
			WithTag("domain", d)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (d Domain) region() region {
	return region{
		leftTop:     Point{X: d.MinX, Y: d.MinY},
		rightBottom: Point{X: d.MaxX, Y: d.MaxY},
	}
}

// Option configures a Quadtree.
type Option func(*options)

type options struct {
	noPruning bool
}

// WithoutPruning makes nearest neighbors queries visit every node instead of
// skipping the quadrants that cannot hold a closer candidate. Results are
// identical, only slower.
func WithoutPruning() Option {
	return func(o *options) {
		o.noPruning = true
	}
}

// Quadtree is a region quadtree over a fixed domain.
type Quadtree[V any] struct {
	domain       Domain
	root         node[V]
	elementCount int
	opts         options
}

// New creates an empty quadtree covering the given domain. It returns an
// error when a bound is not finite or a minimum is greater than its maximum.
func New[V any](minX, minY, maxX, maxY float64, opts ...Option) (*Quadtree[V], error) {
	domain := Domain{
		MinX: minX,
		MinY: minY,
		MaxX: maxX,
		MaxY: maxY,
	}
	if err := domain.Validate(); err != nil {
		return nil, err
	}

	t := &Quadtree[V]{
		domain: domain,
		root:   newLeaf[V](domain.region()),
	}
	for _, o := range opts {
		o(&t.opts)
	}
	return t, nil
}

func (t *Quadtree[V]) Domain() Domain {
	return t.domain
}

// Contains reports whether the given coordinate is inside the domain. NaN
// coordinates are never contained.
func (t *Quadtree[V]) Contains(x, y float64) bool {
	return t.domain.Contains(x, y)
}

func (t *Quadtree[V]) IsEmpty() bool {
	return t.elementCount == 0
}

// ElementCount returns the number of successful inserts minus the number of
// deletes that removed something. Inserting twice at the same coordinate
// counts twice while deleting that coordinate counts once.
func (t *Quadtree[V]) ElementCount() int {
	return t.elementCount
}

// Insert stores v at the given coordinate. It returns false and leaves the
// tree unchanged when the coordinate is outside the domain.
func (t *Quadtree[V]) Insert(x, y float64, v V) bool {
	if !t.Contains(x, y) {
		return false
	}

	t.root = t.root.insert(NewPoint(x, y), v)
	t.elementCount++
	return true
}

// Lookup returns the values stored at exactly the given coordinate, in
// insertion order.
func (t *Quadtree[V]) Lookup(x, y float64) []V {
	if !t.Contains(x, y) {
		return nil
	}
	return t.root.lookup(NewPoint(x, y))
}

// Delete removes and returns every value stored at the given coordinate.
func (t *Quadtree[V]) Delete(x, y float64) []V {
	if !t.Contains(x, y) {
		return nil
	}

	res := t.root.delete(NewPoint(x, y))
	t.root = res.node
	if res.deleted {
		t.elementCount--
	}
	return res.values
}

// Neighbor is a value returned by a nearest neighbors query.
type Neighbor[V any] struct {
	X        float64
	Y        float64
	Distance float64
	Value    V
}

// FindKNearestNeighbors returns up to k values, nearest first. Values at equal
// distance are returned in no particular order.
func (t *Quadtree[V]) FindKNearestNeighbors(x, y float64, k int) []V {
	h, ok := t.searchNearest(x, y, k)
	if !ok {
		return nil
	}
	return h.bestK()
}

// FindKNearest is FindKNearestNeighbors returning the coordinates and the
// distances along with the values.
func (t *Quadtree[V]) FindKNearest(x, y float64, k int) []Neighbor[V] {
	h, ok := t.searchNearest(x, y, k)
	if !ok {
		return nil
	}

	entries := h.drain()
	neighbors := make([]Neighbor[V], len(entries))
	for i, e := range entries {
		neighbors[i] = Neighbor[V]{
			X:        e.point.X,
			Y:        e.point.Y,
			Distance: e.distance,
			Value:    e.value,
		}
	}
	return neighbors
}

func (t *Quadtree[V]) searchNearest(x, y float64, k int) (*nearestHeap[V], bool) {
	if k <= 0 || !t.Contains(x, y) {
		return nil, false
	}

	h := newNearestHeap[V](k)
	t.root.findNearest(NewPoint(x, y), h, !t.opts.noPruning)
	return h, true
}

// Walk calls fn for every stored coordinate with a copy of its values, until
// fn returns false.
func (t *Quadtree[V]) Walk(fn func(x, y float64, values []V) bool) {
	t.root.walk(func(p Point, values []V) bool {
		return fn(p.X, p.Y, values)
	})
}

// Stats returns the shape of the tree. Depth is the number of inner nodes on
// the longest path from the root to a leaf.
func (t *Quadtree[V]) Stats() Stats {
	var s Stats
	t.root.collectStats(&s, 0)
	return s
}
