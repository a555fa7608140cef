package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/tidwall/tinyqueue"
)

// nearestHeap retains the best candidates found during a single k nearest
// neighbors search. The worst retained candidate is always at the top of the
// queue so it can be compared and evicted in constant time.
type nearestHeap[V any] struct {
	capacity int
	queue    *tinyqueue.Queue
}

type heapEntry[V any] struct {
	point    Point
	distance float64
	value    V
}

// Less orders entries by descending distance, which turns tinyqueue into a
// max-heap.
func (e *heapEntry[V]) Less(other tinyqueue.Item) bool {
	return e.distance > other.(*heapEntry[V]).distance
}

func newNearestHeap[V any](capacity int) *nearestHeap[V] {
	if capacity < 0 {
		capacity = 0
	}

	return &nearestHeap[V]{
		capacity: capacity,
		queue:    tinyqueue.New(nil),
	}
}

func (h *nearestHeap[V]) len() int {
	return h.queue.Len()
}

func (h *nearestHeap[V]) isFull() bool {
	return h.queue.Len() >= h.capacity
}

func (h *nearestHeap[V]) worstDistance() (float64, error) {
	if h.queue.Len() == 0 {
		return 0, errors.New("nearest heap is empty").
			WithType(ErrTypeEmptyHeap)
	}
	return h.queue.Peek().(*heapEntry[V]).distance, nil
}

// offer tries to retain the given candidate. A full heap only accepts a
// candidate strictly closer than its worst retained one, which is evicted.
func (h *nearestHeap[V]) offer(p Point, distance float64, v V) bool {
	entry := &heapEntry[V]{
		point:    p,
		distance: distance,
		value:    v,
	}

	if !h.isFull() {
		h.queue.Push(entry)
		return true
	}

	worst, err := h.worstDistance()
	if err != nil || distance >= worst {
		return false
	}

	h.queue.Pop()
	h.queue.Push(entry)
	return true
}

// drain empties the heap and returns its entries sorted by ascending distance.
func (h *nearestHeap[V]) drain() []*heapEntry[V] {
	entries := make([]*heapEntry[V], h.queue.Len())
	for i := len(entries) - 1; i >= 0; i-- {
		entries[i] = h.queue.Pop().(*heapEntry[V])
	}
	return entries
}

// bestK empties the heap and returns the retained values, nearest first.
func (h *nearestHeap[V]) bestK() []V {
	entries := h.drain()
	values := make([]V, 0, len(entries))
	for _, e := range entries {
		values = append(values, e.value)
	}
	return values
}
