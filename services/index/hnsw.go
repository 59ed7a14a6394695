package index

import (
	"container/heap"
	"math"
	"math/rand/v2"
)

// HNSWConfig configures [BuildHNSW].
type HNSWConfig struct {
	// M is the maximum number of neighbours per node on layers above 0;
	// layer 0 allows 2*M. Default 16.
	M int

	// EfConstruction is the candidate list size while building. Default 200.
	EfConstruction int

	// EfSearch is the candidate list size while searching. It is raised to k
	// when smaller. Default 64.
	EfSearch int

	// Seed makes level assignment, and therefore the graph, reproducible.
	Seed uint64
}

func (c *HNSWConfig) setDefaults() {
	if c.M < 2 {
		c.M = 16
	}
	if c.EfConstruction <= 0 {
		c.EfConstruction = 200
	}
	if c.EfSearch <= 0 {
		c.EfSearch = 64
	}
}

func (c *HNSWConfig) maxConns(layer int) int {
	if layer == 0 {
		return c.M * 2
	}
	return c.M
}

// HNSW is a Hierarchical Navigable Small World graph over the build vectors.
//
// Recall trade-off: the hits it returns carry exact distances and follow the
// same ordering and tie-break rules as [Flat], but the candidate set comes
// from a beam search of width max(EfSearch, k). When that width covers the
// whole index, or the beam finds fewer than min(k, n) nodes, the search falls
// back to the exact scan; otherwise a true neighbour can occasionally be
// missed. Searches cost roughly O(log n · EfSearch · D).
//
// Pruning never removes the last incoming layer-0 edge of a node, so every
// node stays a target of the bottom layer.
//
// The graph is built once and never mutated, so concurrent searches need no
// locking.
type HNSW struct {
	cfg      HNSWConfig
	dim      int
	vectors  [][]float32
	nodes    []hnswNode
	inDegree []int // incoming layer-0 edges per node
	entry    int
	maxLevel int
}

type hnswNode struct {
	vector  []float32
	friends [][]int // friends[layer] holds neighbour positions
}

var _ Index = (*HNSW)(nil)

// BuildHNSW creates an approximate index over vectors, copying them.
func BuildHNSW(vectors [][]float32, cfg HNSWConfig) (*HNSW, error) {
	dim, err := checkDims(vectors)
	if err != nil {
		return nil, err
	}
	cfg.setDefaults()

	h := &HNSW{
		cfg:      cfg,
		dim:      dim,
		vectors:  copyVectors(vectors),
		nodes:    make([]hnswNode, 0, len(vectors)),
		inDegree: make([]int, 0, len(vectors)),
		entry:    -1,
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	levelMul := 1.0 / math.Log(float64(cfg.M))
	for _, v := range h.vectors {
		h.insert(v, randomLevel(rng, levelMul))
	}
	return h, nil
}

// Len returns the number of stored vectors.
func (h *HNSW) Len() int { return len(h.nodes) }

// Dim returns the vector dimension.
func (h *HNSW) Dim() int { return h.dim }

// Search returns up to k approximate nearest neighbours.
func (h *HNSW) Search(query []float32, k int) ([]Hit, error) {
	empty, err := checkQuery(query, k, len(h.nodes), h.dim)
	if err != nil {
		return nil, err
	}
	if empty {
		return []Hit{}, nil
	}

	ef := max(h.cfg.EfSearch, k)
	if ef >= len(h.nodes) {
		return scan(h.vectors, query, k), nil
	}
	cur := h.greedyDescend(query, h.entry, h.maxLevel, 0)
	candidates := h.searchLayer(query, []int{cur}, ef, 0)
	if len(candidates) < min(k, len(h.nodes)) {
		return scan(h.vectors, query, k), nil
	}

	hits := make([]Hit, len(candidates))
	for i, pos := range candidates {
		hits[i] = Hit{Position: pos, Distance: SquaredL2(query, h.nodes[pos].vector)}
	}
	sortHits(hits)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (h *HNSW) insert(vec []float32, level int) {
	pos := len(h.nodes)
	h.nodes = append(h.nodes, hnswNode{vector: vec, friends: make([][]int, level+1)})
	h.inDegree = append(h.inDegree, 0)

	if h.entry < 0 {
		h.entry = pos
		h.maxLevel = level
		return
	}

	cur := h.greedyDescend(vec, h.entry, h.maxLevel, level)
	ep := []int{cur}
	for lev := min(level, h.maxLevel); lev >= 0; lev-- {
		candidates := h.searchLayer(vec, ep, h.cfg.EfConstruction, lev)
		maxC := h.cfg.maxConns(lev)
		neighbours := h.selectClosest(vec, candidates, maxC)
		h.nodes[pos].friends[lev] = neighbours

		for _, n := range neighbours {
			nn := &h.nodes[n]
			nn.friends[lev] = append(nn.friends[lev], pos)
			if lev == 0 {
				h.inDegree[n]++
				h.inDegree[pos]++
			}
			if len(nn.friends[lev]) > maxC {
				h.prune(n, lev, maxC)
			}
		}
		ep = candidates
	}

	if level > h.maxLevel {
		h.entry = pos
		h.maxLevel = level
	}
}

// greedyDescend walks from the top layer down to (but not including) stop,
// keeping only the single closest node per layer.
func (h *HNSW) greedyDescend(query []float32, cur, top, stop int) int {
	curDist := SquaredL2(query, h.nodes[cur].vector)
	for lev := top; lev > stop; lev-- {
		for changed := true; changed; {
			changed = false
			friends := h.nodes[cur].friends
			if lev >= len(friends) {
				break
			}
			for _, f := range friends[lev] {
				if d := SquaredL2(query, h.nodes[f].vector); d < curDist {
					cur, curDist = f, d
					changed = true
				}
			}
		}
	}
	return cur
}

// searchLayer runs a beam search of width ef on one layer.
func (h *HNSW) searchLayer(query []float32, entryPoints []int, ef, layer int) []int {
	visited := make(map[int]struct{}, ef*2)
	var candidates nearFirst
	var results farFirst

	for _, ep := range entryPoints {
		if _, seen := visited[ep]; seen {
			continue
		}
		visited[ep] = struct{}{}
		d := SquaredL2(query, h.nodes[ep].vector)
		heap.Push(&candidates, Hit{Position: ep, Distance: d})
		heap.Push(&results, Hit{Position: ep, Distance: d})
		if results.Len() > ef {
			heap.Pop(&results)
		}
	}

	for candidates.Len() > 0 {
		closest := heap.Pop(&candidates).(Hit)
		if results.Len() >= ef && closest.Distance > results[0].Distance {
			break
		}
		friends := h.nodes[closest.Position].friends
		if layer >= len(friends) {
			continue
		}
		for _, f := range friends[layer] {
			if _, seen := visited[f]; seen {
				continue
			}
			visited[f] = struct{}{}
			d := SquaredL2(query, h.nodes[f].vector)
			if results.Len() < ef || d < results[0].Distance {
				heap.Push(&candidates, Hit{Position: f, Distance: d})
				heap.Push(&results, Hit{Position: f, Distance: d})
				if results.Len() > ef {
					heap.Pop(&results)
				}
			}
		}
	}

	out := make([]int, results.Len())
	for i, r := range results {
		out[i] = r.Position
	}
	return out
}

// prune cuts node n's friend list on layer lev back to the maxC closest. On
// layer 0 a friend whose only incoming edge is this one is kept regardless.
func (h *HNSW) prune(n, lev, maxC int) {
	friends := h.nodes[n].friends[lev]
	kept := h.selectClosest(h.nodes[n].vector, friends, maxC)
	if lev == 0 {
		inKept := make(map[int]struct{}, len(kept))
		for _, f := range kept {
			inKept[f] = struct{}{}
		}
		for _, f := range friends {
			if _, ok := inKept[f]; ok {
				continue
			}
			if h.inDegree[f] <= 1 {
				kept = append(kept, f)
				continue
			}
			h.inDegree[f]--
		}
	}
	h.nodes[n].friends[lev] = kept
}

func (h *HNSW) selectClosest(query []float32, candidates []int, maxN int) []int {
	hits := make([]Hit, len(candidates))
	for i, c := range candidates {
		hits[i] = Hit{Position: c, Distance: SquaredL2(query, h.nodes[c].vector)}
	}
	sortHits(hits)
	if len(hits) > maxN {
		hits = hits[:maxN]
	}
	out := make([]int, len(hits))
	for i, hit := range hits {
		out[i] = hit.Position
	}
	return out
}

// randomLevel draws a layer from an exponential distribution so that higher
// layers are exponentially rarer.
func randomLevel(rng *rand.Rand, levelMul float64) int {
	r := max(rng.Float64(), math.SmallestNonzeroFloat64)
	return min(int(-math.Log(r)*levelMul), 31)
}

type nearFirst []Hit

func (q nearFirst) Len() int           { return len(q) }
func (q nearFirst) Less(i, j int) bool { return q[i].before(q[j]) }
func (q nearFirst) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *nearFirst) Push(x any)        { *q = append(*q, x.(Hit)) }
func (q *nearFirst) Pop() any {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

type farFirst = worstFirst
