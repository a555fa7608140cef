package models

import (
	"sort"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/laguz/quadtree"
)

// IndexStore holds the indexes served by a Laguz instance.
type IndexStore struct {
	// The options applied to the tree of every index created by the store.
	TreeOptions []quadtree.Option

	initOnce sync.Once
	mutex    sync.RWMutex
	indexes  map[string]*Index
}

func (s *IndexStore) init() {
	s.indexes = map[string]*Index{}
}

// Create creates an index over the given domain and adds it to the store.
func (s *IndexStore) Create(name string, domain quadtree.Domain) (*Index, error) {
	idx, err := NewIndex(name, domain, s.TreeOptions...)
	if err != nil {
		return nil, err
	}

	s.Add(idx)
	return idx, nil
}

func (s *IndexStore) Add(idx *Index) {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.indexes[idx.ID] = idx
	instrumentAddIndex()
	instrumentElementCount(idx.ID, idx.Count())
}

// Remove removes the index with the given id. It returns an error when there
// is no such index.
func (s *IndexStore) Remove(id string) error {
	s.initOnce.Do(s.init)
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.indexes[id]; !ok {
		return errors.New("index not found").
			WithType(ErrTypeIndexNotFound).
			WithTag("index_id", id)
	}

	delete(s.indexes, id)
	instrumentRemoveIndex(id)
	return nil
}

func (s *IndexStore) Get(id string) (*Index, bool) {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	idx, ok := s.indexes[id]
	return idx, ok
}

// List returns the indexes ordered by creation time.
func (s *IndexStore) List() []*Index {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	indexes := make([]*Index, 0, len(s.indexes))
	for _, idx := range s.indexes {
		indexes = append(indexes, idx)
	}

	sort.Slice(indexes, func(a, b int) bool {
		if indexes[a].CreatedAt.Equal(indexes[b].CreatedAt) {
			return indexes[a].ID < indexes[b].ID
		}
		return indexes[a].CreatedAt.Before(indexes[b].CreatedAt)
	})
	return indexes
}

func (s *IndexStore) Len() int {
	s.initOnce.Do(s.init)
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.indexes)
}
