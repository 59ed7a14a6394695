// Package retrieval composes an embedder, a vector index and the corpus
// store to fetch the documents nearest to a query.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/rag-pipeline/models"
	"github.com/upb/rag-pipeline/services"
	"github.com/upb/rag-pipeline/services/corpus"
	"github.com/upb/rag-pipeline/services/embedding"
	"github.com/upb/rag-pipeline/services/index"
)

// Retriever finds the k corpus documents closest to a query. It holds only
// read-only state and is safe for concurrent use.
type Retriever struct {
	embedder embedding.Embedder
	index    index.Index
	store    *corpus.Store
	logger   *zap.Logger
}

// NewRetriever checks that the index and store describe the same corpus and
// that the embedder produces vectors of the index dimension.
func NewRetriever(e embedding.Embedder, idx index.Index, store *corpus.Store, logger *zap.Logger) (*Retriever, error) {
	if e == nil || idx == nil || store == nil {
		return nil, services.WrapInternal("retriever requires an embedder, an index and a store", nil)
	}
	if idx.Len() != store.Len() {
		return nil, services.NewDomainError(services.ErrorTypeInternal,
			fmt.Sprintf("index holds %d vectors but corpus holds %d documents", idx.Len(), store.Len()), nil)
	}
	if idx.Len() > 0 && idx.Dim() != e.Dimension() {
		return nil, services.DimensionMismatch(e.Dimension(), idx.Dim())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		embedder: embedding.NewChecked(e),
		index:    idx,
		store:    store,
		logger:   logger,
	}, nil
}

// Retrieve returns up to k documents ordered by ascending distance. An empty
// index yields an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.Document, error) {
	if k <= 0 {
		return nil, services.InvalidArgument("k must be positive, got %d", k)
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := r.index.Search(vec, k)
	if err != nil {
		return nil, err
	}

	docs := make([]models.Document, 0, len(hits))
	for _, h := range hits {
		doc, err := r.store.Get(h.Position)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	if ce := r.logger.Check(zap.DebugLevel, "retrieved documents"); ce != nil {
		ids := make([]string, len(docs))
		for i, d := range docs {
			ids[i] = d.ID
		}
		ce.Write(zap.Int("k", k), zap.Strings("ids", ids))
	}
	return docs, nil
}

// Size returns the number of indexed documents.
func (r *Retriever) Size() int { return r.store.Len() }
