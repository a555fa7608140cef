package models

import "github.com/aukilabs/laguz/quadtree"

// Datapoint is the value stored in an index.
type Datapoint struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// Placement is a datapoint with its coordinate.
type Placement struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Datapoint Datapoint `json:"datapoint"`
}

// Neighbor is a datapoint returned by a nearest neighbors query.
type Neighbor struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Distance  float64   `json:"distance"`
	Datapoint Datapoint `json:"datapoint"`
}

func neighborsFromQuadtree(neighbors []quadtree.Neighbor[Datapoint]) []Neighbor {
	res := make([]Neighbor, len(neighbors))
	for i, n := range neighbors {
		res[i] = Neighbor{
			X:         n.X,
			Y:         n.Y,
			Distance:  n.Distance,
			Datapoint: n.Value,
		}
	}
	return res
}
