package index

import "container/heap"

// Flat is an exact index: every search scans all stored vectors, O(n·D).
// It is the reference implementation for the ordering contract.
type Flat struct {
	dim     int
	vectors [][]float32
}

var _ Index = (*Flat)(nil)

// Build creates an exact index over vectors, copying them. All vectors must
// share one dimension; zero vectors yields an empty, searchable index.
func Build(vectors [][]float32) (*Flat, error) {
	dim, err := checkDims(vectors)
	if err != nil {
		return nil, err
	}
	return &Flat{dim: dim, vectors: copyVectors(vectors)}, nil
}

// Len returns the number of stored vectors.
func (f *Flat) Len() int { return len(f.vectors) }

// Dim returns the vector dimension.
func (f *Flat) Dim() int { return f.dim }

// Search returns the k nearest vectors by squared L2 distance.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	empty, err := checkQuery(query, k, len(f.vectors), f.dim)
	if err != nil {
		return nil, err
	}
	if empty {
		return []Hit{}, nil
	}

	return scan(f.vectors, query, k), nil
}

// scan is the exact k-nearest search over vectors. k must be positive.
func scan(vectors [][]float32, query []float32, k int) []Hit {
	k = min(k, len(vectors))
	worst := make(worstFirst, 0, k)
	for pos, v := range vectors {
		h := Hit{Position: pos, Distance: SquaredL2(query, v)}
		if len(worst) < k {
			heap.Push(&worst, h)
			continue
		}
		if h.before(worst[0]) {
			worst[0] = h
			heap.Fix(&worst, 0)
		}
	}

	hits := []Hit(worst)
	sortHits(hits)
	return hits
}

// before reports whether h ranks ahead of o.
func (h Hit) before(o Hit) bool {
	if h.Distance != o.Distance {
		return h.Distance < o.Distance
	}
	return h.Position < o.Position
}

// worstFirst is a max-heap holding the current k best hits, worst on top.
type worstFirst []Hit

func (w worstFirst) Len() int           { return len(w) }
func (w worstFirst) Less(i, j int) bool { return w[j].before(w[i]) }
func (w worstFirst) Swap(i, j int)      { w[i], w[j] = w[j], w[i] }
func (w *worstFirst) Push(x any)        { *w = append(*w, x.(Hit)) }
func (w *worstFirst) Pop() any {
	old := *w
	n := len(old)
	x := old[n-1]
	*w = old[:n-1]
	return x
}
