package quadtree

import "slices"

type leaf[V any] struct {
	bounds region

	// point is only meaningful while values is not empty.
	point  Point
	values []V
}

func newLeaf[V any](r region) *leaf[V] {
	return &leaf[V]{bounds: r}
}

func (l *leaf[V]) region() region {
	return l.bounds
}

func (l *leaf[V]) isEmpty() bool {
	return len(l.values) == 0
}

func (l *leaf[V]) lookup(p Point) []V {
	if l.isEmpty() || !l.point.Equal(p) {
		return nil
	}
	return slices.Clone(l.values)
}

func (l *leaf[V]) insert(p Point, v V) node[V] {
	switch {
	case l.isEmpty():
		l.point = p
		l.values = append(l.values, v)
		return l

	case l.point.Equal(p):
		l.values = append(l.values, v)
		return l
	}

	// A leaf holds a single coordinate. A second one splits the leaf into an
	// inner node over the same region.
	n := newInner[V](l.bounds)
	for _, existing := range l.values {
		n.insert(l.point, existing)
	}
	n.insert(p, v)
	return n
}

func (l *leaf[V]) delete(p Point) deleteResult[V] {
	if l.isEmpty() || !l.point.Equal(p) {
		return deleteResult[V]{node: l}
	}

	values := l.values
	l.point = Point{}
	l.values = nil

	return deleteResult[V]{
		values:  values,
		node:    l,
		deleted: true,
	}
}

func (l *leaf[V]) findNearest(q Point, h *nearestHeap[V], prune bool) {
	if l.isEmpty() {
		return
	}

	distance := l.point.Distance(q)
	for _, v := range l.values {
		h.offer(l.point, distance, v)
	}
}

func (l *leaf[V]) walk(fn func(p Point, values []V) bool) bool {
	if l.isEmpty() {
		return true
	}
	return fn(l.point, slices.Clone(l.values))
}

func (l *leaf[V]) collectStats(s *Stats, depth int) {
	s.Leaves++
	if l.isEmpty() {
		s.EmptyLeaves++
	} else {
		s.Coordinates++
	}
	if depth > s.Depth {
		s.Depth = depth
	}
}
