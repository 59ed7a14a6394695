package embedding

import (
	"context"
	"fmt"

	"github.com/upb/rag-pipeline/services"
)

// Modeler is implemented by embedders that can name their model version.
type Modeler interface {
	Model() string
}

// ModelName returns e's model identifier, or "unknown".
func ModelName(e Embedder) string {
	if m, ok := e.(Modeler); ok {
		return m.Model()
	}
	return "unknown"
}

// Checked enforces the embedder contract on top of a backend: every vector
// has the configured dimension, batches come back one vector per input, and
// any backend error is reported as an embedding failure.
type Checked struct {
	inner Embedder
}

var _ Embedder = (*Checked)(nil)

// NewChecked wraps e. Wrapping an already checked embedder returns it as is.
func NewChecked(e Embedder) *Checked {
	if c, ok := e.(*Checked); ok {
		return c
	}
	return &Checked{inner: e}
}

func (c *Checked) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, services.WrapEmbedding("embedding model failed", err)
	}
	if err := c.check(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Checked) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vecs, err := c.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, services.WrapEmbedding("embedding model failed", err)
	}
	if len(vecs) != len(texts) {
		return nil, services.NewDomainError(services.ErrorTypeEmbeddingFailure,
			fmt.Sprintf("embedding model returned %d vectors for %d inputs", len(vecs), len(texts)), nil)
	}
	for i, v := range vecs {
		if err := c.check(v); err != nil {
			return nil, err.WithDetail("position", i)
		}
	}
	return vecs, nil
}

func (c *Checked) Dimension() int { return c.inner.Dimension() }

func (c *Checked) Model() string { return ModelName(c.inner) }

// Unwrap returns the wrapped backend.
func (c *Checked) Unwrap() Embedder { return c.inner }

func (c *Checked) check(v []float32) *services.DomainError {
	if want := c.inner.Dimension(); len(v) != want {
		return services.NewDomainError(services.ErrorTypeEmbeddingFailure,
			"embedding model returned a vector of the wrong dimension",
			services.DimensionMismatch(len(v), want))
	}
	return nil
}
