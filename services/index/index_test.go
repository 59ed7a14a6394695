package index

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/rag-pipeline/services"
)

func randomVectors(n, dim int, seed uint64) [][]float32 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()*2 - 1
		}
		out[i] = v
	}
	return out
}

func positions(hits []Hit) []int {
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.Position
	}
	return out
}

func TestSquaredL2(t *testing.T) {
	assert.Equal(t, float32(0), SquaredL2([]float32{1, 2}, []float32{1, 2}))
	assert.Equal(t, float32(25), SquaredL2([]float32{0, 0}, []float32{3, 4}))
}

func TestBuild(t *testing.T) {
	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := Build([][]float32{{1, 2}, {1, 2, 3}})
		require.Error(t, err)
		assert.True(t, services.IsDimensionMismatchError(err))
		assert.Equal(t, 1, services.GetErrorDetails(err)["position"])
	})

	t.Run("zero-length vectors rejected", func(t *testing.T) {
		_, err := Build([][]float32{{}})
		assert.True(t, services.IsInvalidArgumentError(err))
	})

	t.Run("copies input", func(t *testing.T) {
		vecs := [][]float32{{0, 0}, {5, 5}}
		idx, err := Build(vecs)
		require.NoError(t, err)
		vecs[0][0] = 100

		hits, err := idx.Search([]float32{0, 0}, 1)
		require.NoError(t, err)
		assert.Equal(t, 0, hits[0].Position)
		assert.Equal(t, float32(0), hits[0].Distance)
	})
}

func TestFlat_Search(t *testing.T) {
	idx, err := Build([][]float32{
		{0, 0},
		{3, 4},
		{1, 0},
		{0, 1},
	})
	require.NoError(t, err)
	require.Equal(t, 4, idx.Len())
	require.Equal(t, 2, idx.Dim())

	tests := []struct {
		name      string
		k         int
		wantPos   []int
		wantDists []float32
	}{
		{"k smaller than n", 2, []int{0, 2}, []float32{0, 1}},
		{"k equals n", 4, []int{0, 2, 3, 1}, []float32{0, 1, 1, 25}},
		{"k larger than n", 10, []int{0, 2, 3, 1}, []float32{0, 1, 1, 25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := idx.Search([]float32{0, 0}, tt.k)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPos, positions(hits))
			for i, h := range hits {
				assert.Equal(t, tt.wantDists[i], h.Distance)
			}
		})
	}
}

func TestFlat_SearchErrors(t *testing.T) {
	idx, err := Build([][]float32{{1, 1}})
	require.NoError(t, err)

	for _, k := range []int{0, -3} {
		_, err := idx.Search([]float32{1, 1}, k)
		assert.True(t, services.IsInvalidArgumentError(err), "k=%d", k)
	}

	_, err = idx.Search([]float32{1, 1, 1}, 1)
	assert.True(t, services.IsDimensionMismatchError(err))
}

func TestFlat_EmptyIndex(t *testing.T) {
	idx, err := Build(nil)
	require.NoError(t, err)

	hits, err := idx.Search([]float32{1, 2, 3}, 3)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)

	_, err = idx.Search([]float32{1}, 0)
	assert.True(t, services.IsInvalidArgumentError(err), "k is validated before the empty check")
}

func TestFlat_TiesBrokenByPosition(t *testing.T) {
	// All four vectors sit at distance 1 from the origin.
	idx, err := Build([][]float32{{0, 1}, {1, 0}, {0, -1}, {-1, 0}})
	require.NoError(t, err)

	hits, err := idx.Search([]float32{0, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, positions(hits))
}

func TestFlat_SwapPreservesRanking(t *testing.T) {
	a := []float32{0.1, 0.2}
	b := []float32{0.9, 0.9}
	q := []float32{0, 0}

	first, err := Build([][]float32{a, b})
	require.NoError(t, err)
	swapped, err := Build([][]float32{b, a})
	require.NoError(t, err)

	h1, err := first.Search(q, 2)
	require.NoError(t, err)
	h2, err := swapped.Search(q, 2)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, positions(h1))
	assert.Equal(t, []int{1, 0}, positions(h2))
	assert.Equal(t, h1[0].Distance, h2[0].Distance)
}

func TestFlat_RandomisedOrdering(t *testing.T) {
	vecs := randomVectors(200, 8, 7)
	idx, err := Build(vecs)
	require.NoError(t, err)

	for _, q := range randomVectors(20, 8, 99) {
		for _, k := range []int{1, 5, 50, 200, 500} {
			hits, err := idx.Search(q, k)
			require.NoError(t, err)
			require.Len(t, hits, min(k, len(vecs)))
			for i := 1; i < len(hits); i++ {
				assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
				assert.GreaterOrEqual(t, hits[i].Distance, float32(0))
			}
		}
	}
}

func TestHNSW_MatchesExactWhenBeamCoversIndex(t *testing.T) {
	vecs := randomVectors(60, 6, 11)
	exact, err := Build(vecs)
	require.NoError(t, err)
	approx, err := BuildHNSW(vecs, HNSWConfig{M: 8, EfConstruction: 64, EfSearch: 128, Seed: 42})
	require.NoError(t, err)
	require.Equal(t, exact.Len(), approx.Len())
	require.Equal(t, exact.Dim(), approx.Dim())

	for _, q := range randomVectors(10, 6, 5) {
		want, err := exact.Search(q, 5)
		require.NoError(t, err)
		got, err := approx.Search(q, 5)
		require.NoError(t, err)
		assert.Equal(t, positions(want), positions(got))
	}
}

func TestHNSW_Contract(t *testing.T) {
	t.Run("empty index", func(t *testing.T) {
		idx, err := BuildHNSW(nil, HNSWConfig{})
		require.NoError(t, err)
		hits, err := idx.Search([]float32{1}, 2)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("invalid k", func(t *testing.T) {
		idx, err := BuildHNSW([][]float32{{1}}, HNSWConfig{})
		require.NoError(t, err)
		_, err = idx.Search([]float32{1}, 0)
		assert.True(t, services.IsInvalidArgumentError(err))
	})

	t.Run("dimension mismatch at build", func(t *testing.T) {
		_, err := BuildHNSW([][]float32{{1}, {1, 2}}, HNSWConfig{})
		assert.True(t, services.IsDimensionMismatchError(err))
	})

	t.Run("k larger than n", func(t *testing.T) {
		idx, err := BuildHNSW(randomVectors(4, 3, 1), HNSWConfig{Seed: 1})
		require.NoError(t, err)
		hits, err := idx.Search([]float32{0, 0, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, hits, 4)
	})

	t.Run("reproducible builds", func(t *testing.T) {
		vecs := randomVectors(40, 4, 3)
		a, err := BuildHNSW(vecs, HNSWConfig{Seed: 9, EfSearch: 4})
		require.NoError(t, err)
		b, err := BuildHNSW(vecs, HNSWConfig{Seed: 9, EfSearch: 4})
		require.NoError(t, err)

		q := []float32{0.1, 0.2, 0.3, 0.4}
		ha, err := a.Search(q, 3)
		require.NoError(t, err)
		hb, err := b.Search(q, 3)
		require.NoError(t, err)
		assert.Equal(t, ha, hb)
	})
}

func TestHNSW_ExactWhenEfCoversIndex(t *testing.T) {
	tests := []struct {
		name string
		n    int
		m    int
	}{
		{"sparse graph", 200, 2},
		{"large corpus", 1000, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vecs := randomVectors(tt.n, 8, uint64(tt.n))
			exact, err := Build(vecs)
			require.NoError(t, err)
			approx, err := BuildHNSW(vecs, HNSWConfig{M: tt.m, EfConstruction: 16, EfSearch: tt.n, Seed: 7})
			require.NoError(t, err)

			for _, q := range randomVectors(20, 8, 99) {
				want, err := exact.Search(q, tt.n)
				require.NoError(t, err)
				got, err := approx.Search(q, tt.n)
				require.NoError(t, err)
				require.Len(t, got, tt.n)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestHNSW_ReturnsMinKNWithNarrowBeam(t *testing.T) {
	vecs := randomVectors(200, 8, 21)
	idx, err := BuildHNSW(vecs, HNSWConfig{M: 2, EfConstruction: 8, EfSearch: 4, Seed: 3})
	require.NoError(t, err)

	for _, q := range randomVectors(20, 8, 22) {
		for _, k := range []int{1, 10, 150} {
			hits, err := idx.Search(q, k)
			require.NoError(t, err)
			require.Len(t, hits, k)
			for i := 1; i < len(hits); i++ {
				assert.True(t, hits[i-1].before(hits[i]))
			}
		}
	}
}

func TestHNSW_DuplicateVectors(t *testing.T) {
	t.Run("all identical", func(t *testing.T) {
		vecs := make([][]float32, 300)
		for i := range vecs {
			vecs[i] = []float32{1, 2, 3}
		}
		idx, err := BuildHNSW(vecs, HNSWConfig{M: 2, EfSearch: 8, Seed: 1})
		require.NoError(t, err)

		hits, err := idx.Search([]float32{1, 2, 3}, 300)
		require.NoError(t, err)
		require.Len(t, hits, 300)
		for i, h := range hits {
			assert.Equal(t, i, h.Position)
		}
	})

	t.Run("two distinct values with defaults", func(t *testing.T) {
		vecs := make([][]float32, 500)
		for i := range vecs {
			vecs[i] = []float32{float32(i % 2), 0}
		}
		exact, err := Build(vecs)
		require.NoError(t, err)
		idx, err := BuildHNSW(vecs, HNSWConfig{Seed: 5})
		require.NoError(t, err)

		for _, k := range []int{10, 64, 500} {
			hits, err := idx.Search([]float32{0, 0}, k)
			require.NoError(t, err)
			require.Len(t, hits, k)
			if k == 500 {
				want, err := exact.Search([]float32{0, 0}, k)
				require.NoError(t, err)
				assert.Equal(t, want, hits)
			}
		}
	})
}

func TestHNSW_EveryNodeHasIncomingEdge(t *testing.T) {
	idx, err := BuildHNSW(randomVectors(300, 4, 8), HNSWConfig{M: 2, EfConstruction: 8, Seed: 2})
	require.NoError(t, err)

	incoming := make([]int, idx.Len())
	for _, node := range idx.nodes {
		for _, f := range node.friends[0] {
			incoming[f]++
		}
	}
	for pos, c := range incoming {
		assert.Positive(t, c, "node %d has no incoming layer-0 edge", pos)
		assert.Equal(t, idx.inDegree[pos], c)
	}
}
