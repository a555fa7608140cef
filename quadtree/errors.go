package quadtree

const (
	// ErrTypeInvalidDomain is the error type returned when a domain has its
	// minimum greater than its maximum on an axis, or a NaN bound.
	ErrTypeInvalidDomain = "invalid_domain"

	// ErrTypeEmptyHeap is the error type returned when the worst distance of
	// an empty nearest heap is requested.
	ErrTypeEmptyHeap = "empty_heap"
)
