package models

import (
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/laguz/quadtree"
	"github.com/google/uuid"
)

const (
	ErrTypeOutOfDomain   = "out_of_domain"
	ErrTypeIndexNotFound = "index_not_found"
)

// Index is a named quadtree of datapoints that can be shared between
// connections. The underlying tree is not safe for concurrent use so every
// access goes through the index mutex.
type Index struct {
	ID        string
	Name      string
	CreatedAt time.Time

	mutex sync.RWMutex
	tree  *quadtree.Quadtree[Datapoint]
	ids   SequentialIDGenerator
}

func NewIndex(name string, domain quadtree.Domain, opts ...quadtree.Option) (*Index, error) {
	tree, err := quadtree.New[Datapoint](domain.MinX, domain.MinY, domain.MaxX, domain.MaxY, opts...)
	if err != nil {
		return nil, err
	}

	return &Index{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
		tree:      tree,
	}, nil
}

func (i *Index) Domain() quadtree.Domain {
	return i.tree.Domain()
}

// Insert stores the datapoint at the given coordinate. A datapoint without id
// gets a sequential one. It returns an error when the coordinate is outside
// the index domain.
func (i *Index) Insert(x, y float64, dp Datapoint) (Datapoint, error) {
	start := time.Now()

	i.mutex.Lock()
	defer i.mutex.Unlock()

	if dp.ID == "" {
		dp.ID = i.ids.NewString()
	}

	if !i.tree.Insert(x, y, dp) {
		instrumentOperation("insert", resultOutOfDomain, start)
		return Datapoint{}, errors.New("coordinate is outside the index domain").
			WithType(ErrTypeOutOfDomain).
			WithTag("index_id", i.ID).
			WithTag("x", x).
			WithTag("y", y)
	}

	instrumentOperation("insert", resultOK, start)
	instrumentElementCount(i.ID, i.tree.ElementCount())
	return dp, nil
}

func (i *Index) Lookup(x, y float64) []Datapoint {
	start := time.Now()

	i.mutex.RLock()
	defer i.mutex.RUnlock()

	values := i.tree.Lookup(x, y)
	instrumentOperation("lookup", lookupResult(i.tree, x, y, len(values)), start)
	return values
}

func (i *Index) Delete(x, y float64) []Datapoint {
	start := time.Now()

	i.mutex.Lock()
	defer i.mutex.Unlock()

	values := i.tree.Delete(x, y)
	instrumentOperation("delete", lookupResult(i.tree, x, y, len(values)), start)
	instrumentElementCount(i.ID, i.tree.ElementCount())
	return values
}

// Nearest returns up to k datapoints, nearest first.
func (i *Index) Nearest(x, y float64, k int) []Neighbor {
	start := time.Now()

	i.mutex.RLock()
	defer i.mutex.RUnlock()

	neighbors := i.tree.FindKNearest(x, y, k)
	instrumentOperation("nearest", lookupResult(i.tree, x, y, len(neighbors)), start)
	return neighborsFromQuadtree(neighbors)
}

// Contains reports whether the coordinate is inside the index domain.
func (i *Index) Contains(x, y float64) bool {
	return i.tree.Contains(x, y)
}

func (i *Index) Count() int {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	return i.tree.ElementCount()
}

func (i *Index) Stats() quadtree.Stats {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	return i.tree.Stats()
}

// Placements returns every stored datapoint with its coordinate.
func (i *Index) Placements() []Placement {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	var placements []Placement
	i.tree.Walk(func(x, y float64, values []Datapoint) bool {
		for _, v := range values {
			placements = append(placements, Placement{
				X:         x,
				Y:         y,
				Datapoint: v,
			})
		}
		return true
	})
	return placements
}

func lookupResult(tree *quadtree.Quadtree[Datapoint], x, y float64, n int) string {
	switch {
	case !tree.Contains(x, y):
		return resultOutOfDomain
	case n == 0:
		return resultMiss
	default:
		return resultOK
	}
}
