package models

import (
	"strconv"
	"sync"
)

// A sequential id generator.
type SequentialIDGenerator struct {
	mutex     sync.Mutex
	currentID uint32
}

// New returns the next sequential id, starting at 1.
func (g *SequentialIDGenerator) New() uint32 {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.currentID++
	return g.currentID
}

// NewString returns the next sequential id formatted in base 10.
func (g *SequentialIDGenerator) NewString() string {
	return strconv.FormatUint(uint64(g.New()), 10)
}
