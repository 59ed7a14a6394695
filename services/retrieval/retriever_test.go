package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/upb/rag-pipeline/models"
	"github.com/upb/rag-pipeline/services"
	"github.com/upb/rag-pipeline/services/corpus"
	"github.com/upb/rag-pipeline/services/embedding"
	"github.com/upb/rag-pipeline/services/index"
)

func buildRetriever(t *testing.T, docs []models.Document) *Retriever {
	t.Helper()
	ctx := context.Background()
	e := embedding.NewHash(embedding.DefaultHashDimension)
	vecs, err := e.EmbedBatch(ctx, models.Texts(docs))
	require.NoError(t, err)
	idx, err := index.Build(vecs)
	require.NoError(t, err)
	r, err := NewRetriever(e, idx, corpus.NewStore(docs), zaptest.NewLogger(t))
	require.NoError(t, err)
	return r
}

func TestRetrieve_ClusteringRanksFirst(t *testing.T) {
	r := buildRetriever(t, corpus.SampleDocuments)

	docs, err := r.Retrieve(context.Background(), "What is clustering?", 3)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "Document about drones and clustering techniques.", docs[0].Text)
	assert.ElementsMatch(t, corpus.SampleDocuments, docs)
}

func TestRetrieve_KBoundsResult(t *testing.T) {
	r := buildRetriever(t, corpus.SampleDocuments)

	docs, err := r.Retrieve(context.Background(), "machine learning applications", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-1", docs[0].ID)

	docs, err = r.Retrieve(context.Background(), "machine learning", 10)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestRetrieve_EmptyCorpus(t *testing.T) {
	r := buildRetriever(t, nil)

	docs, err := r.Retrieve(context.Background(), "What is clustering?", 3)
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
	assert.Zero(t, r.Size())
}

func TestRetrieve_InvalidK(t *testing.T) {
	r := buildRetriever(t, corpus.SampleDocuments)
	for _, k := range []int{0, -1} {
		_, err := r.Retrieve(context.Background(), "q", k)
		assert.True(t, services.IsInvalidArgumentError(err), "k=%d", k)
	}
}

type failingEmbedder struct{ dim int }

func (f failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("model unavailable")
}

func (f failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model unavailable")
}

func (f failingEmbedder) Dimension() int { return f.dim }

func TestRetrieve_EmbeddingFailure(t *testing.T) {
	idx, err := index.Build([][]float32{{1, 0}})
	require.NoError(t, err)
	r, err := NewRetriever(failingEmbedder{dim: 2}, idx, corpus.NewStore([]models.Document{{ID: "a", Text: "a"}}), nil)
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "q", 1)
	require.Error(t, err)
	assert.True(t, services.IsEmbeddingFailureError(err))
}

// shiftedIndex reports positions past the end of the corpus.
type shiftedIndex struct{ index.Index }

func (s shiftedIndex) Search(q []float32, k int) ([]index.Hit, error) {
	hits, err := s.Index.Search(q, k)
	for i := range hits {
		hits[i].Position += 10
	}
	return hits, err
}

func TestRetrieve_PositionOutsideStore(t *testing.T) {
	e := embedding.NewHash(4)
	idx, err := index.Build([][]float32{{1, 0, 0, 0}})
	require.NoError(t, err)
	r, err := NewRetriever(e, shiftedIndex{idx}, corpus.NewStore([]models.Document{{ID: "a", Text: "a"}}), nil)
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "a", 1)
	assert.True(t, services.IsIndexOutOfRangeError(err))
}

func TestNewRetriever_Validation(t *testing.T) {
	e := embedding.NewHash(4)
	idx, err := index.Build([][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}})
	require.NoError(t, err)

	t.Run("corpus and index sizes differ", func(t *testing.T) {
		_, err := NewRetriever(e, idx, corpus.NewStore([]models.Document{{ID: "a", Text: "a"}}), nil)
		require.Error(t, err)
		assert.True(t, services.IsInternalError(err))
	})

	t.Run("embedder dimension differs", func(t *testing.T) {
		docs := []models.Document{{ID: "a", Text: "a"}, {ID: "b", Text: "b"}}
		_, err := NewRetriever(embedding.NewHash(8), idx, corpus.NewStore(docs), nil)
		assert.True(t, services.IsDimensionMismatchError(err))
	})

	t.Run("missing collaborators", func(t *testing.T) {
		_, err := NewRetriever(nil, idx, corpus.NewStore(nil), nil)
		assert.Error(t, err)
	})
}
