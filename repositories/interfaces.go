package repositories

import (
	"context"

	"github.com/upb/rag-pipeline/models"
)

// DocumentRepository reads the corpus from a backing store.
type DocumentRepository interface {
	// List returns every document in corpus order
	List(ctx context.Context) ([]models.Document, error)

	// Count returns the number of stored documents
	Count(ctx context.Context) (int, error)
}

// EmbeddingCache stores build-time embeddings keyed by model and text.
type EmbeddingCache interface {
	// GetMany returns the cached vector for each text, nil where absent
	GetMany(ctx context.Context, namespace string, texts []string) ([][]float32, error)

	// PutMany stores one vector per text
	PutMany(ctx context.Context, namespace string, texts []string, vectors [][]float32) error

	// Close releases the underlying store
	Close() error
}
