// Package index provides nearest-neighbour search over fixed-dimension
// embeddings.
//
// Distances are squared Euclidean. Every implementation returns hits in
// ascending distance order with equal distances ordered by stored position,
// and an index holding no vectors answers every search with an empty result.
//
// [Flat] is the exact linear scan and the default. [HNSW] is an approximate
// graph index behind the same contract; see its documentation for the recall
// trade-off.
package index

import (
	"sort"

	"github.com/upb/rag-pipeline/services"
)

// Index answers k-nearest-neighbour queries over a read-only set of vectors.
// Implementations are safe for concurrent Search calls once built.
type Index interface {
	// Search returns the min(k, Len()) stored vectors closest to query.
	Search(query []float32, k int) ([]Hit, error)

	// Len returns the number of stored vectors.
	Len() int

	// Dim returns the vector dimension, or 0 for an index built empty.
	Dim() int
}

// Hit is one search result.
type Hit struct {
	// Position is the index of the matched vector in build order, which is
	// also its position in the corpus.
	Position int

	// Distance is the squared Euclidean distance to the query. Never negative.
	Distance float32
}

// Kind names an index implementation in configuration.
type Kind string

const (
	KindFlat Kind = "flat"
	KindHNSW Kind = "hnsw"
)

// SquaredL2 returns the squared Euclidean distance between a and b, which
// must have equal length.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// checkDims verifies every vector has the same length and returns it.
func checkDims(vectors [][]float32) (int, error) {
	if len(vectors) == 0 {
		return 0, nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, services.InvalidArgument("vectors must not be empty")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, services.DimensionMismatch(len(v), dim).WithDetail("position", i)
		}
	}
	return dim, nil
}

// checkQuery validates a search request against an index of n vectors of
// dimension dim. It reports whether the search can return early with an
// empty result.
func checkQuery(query []float32, k, n, dim int) (empty bool, err error) {
	if k <= 0 {
		return false, services.InvalidArgument("k must be positive, got %d", k)
	}
	if n == 0 {
		return true, nil
	}
	if len(query) != dim {
		return false, services.DimensionMismatch(len(query), dim)
	}
	return false, nil
}

// sortHits orders hits by distance, then position.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Position < hits[j].Position
	})
}

func copyVectors(vectors [][]float32) [][]float32 {
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		cp := make([]float32, len(v))
		copy(cp, v)
		out[i] = cp
	}
	return out
}
