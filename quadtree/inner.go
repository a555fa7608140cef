package quadtree

type inner[V any] struct {
	bounds   region
	center   Point
	children [4]node[V]
}

func newInner[V any](r region) *inner[V] {
	n := &inner[V]{
		bounds: r,
		center: r.center(),
	}

	for i, q := range r.quadrants() {
		n.children[i] = newLeaf[V](q)
	}
	return n
}

func (n *inner[V]) region() region {
	return n.bounds
}

// isEmpty is always false: an inner node whose children are all empty
// collapses into a leaf on the delete that emptied it.
func (n *inner[V]) isEmpty() bool {
	return false
}

// childIndex returns the quadrant of p: top when p.Y <= center.Y, left when
// p.X <= center.X.
func (n *inner[V]) childIndex(p Point) int {
	if p.Y <= n.center.Y {
		if p.X <= n.center.X {
			return 0
		}
		return 1
	}

	if p.X <= n.center.X {
		return 2
	}
	return 3
}

func (n *inner[V]) lookup(p Point) []V {
	return n.children[n.childIndex(p)].lookup(p)
}

func (n *inner[V]) insert(p Point, v V) node[V] {
	i := n.childIndex(p)
	n.children[i] = n.children[i].insert(p, v)
	return n
}

func (n *inner[V]) delete(p Point) deleteResult[V] {
	i := n.childIndex(p)
	res := n.children[i].delete(p)
	n.children[i] = res.node

	for _, c := range n.children {
		if !c.isEmpty() {
			res.node = n
			return res
		}
	}

	res.node = newLeaf[V](n.bounds)
	return res
}

// findNearest searches the quadrant containing q first to tighten the bound
// early. The other quadrants are skipped once the heap is full and their
// closest position is not strictly nearer than the worst retained candidate.
func (n *inner[V]) findNearest(q Point, h *nearestHeap[V], prune bool) {
	first := n.childIndex(q)
	n.children[first].findNearest(q, h, prune)

	for i, c := range n.children {
		if i == first {
			continue
		}

		if prune && h.isFull() {
			worst, err := h.worstDistance()
			if err == nil && c.region().distanceTo(q) >= worst {
				continue
			}
		}

		c.findNearest(q, h, prune)
	}
}

func (n *inner[V]) walk(fn func(p Point, values []V) bool) bool {
	for _, c := range n.children {
		if !c.walk(fn) {
			return false
		}
	}
	return true
}

func (n *inner[V]) collectStats(s *Stats, depth int) {
	s.Inners++
	for _, c := range n.children {
		c.collectStats(s, depth+1)
	}
}
