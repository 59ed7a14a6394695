package embedding

import (
	"context"

	"github.com/upb/rag-pipeline/internal/ollama"
)

const ollamaDefaultModel = "nomic-embed-text"

// Ollama embeds text with a model served by a local Ollama instance. The
// dimension is not reported by the server, so it must be configured to match
// the model (768 for nomic-embed-text).
type Ollama struct {
	client *ollama.Client
	model  string
	dim    int
}

var _ Embedder = (*Ollama)(nil)

// NewOllama creates an Ollama embedder.
func NewOllama(opts ...Option) *Ollama {
	cfg := newConfig(ollamaDefaultModel, 768, opts)
	return &Ollama{
		client: ollama.NewClient(ollama.WithBaseURL(cfg.baseURL), ollama.WithHTTPClient(cfg.httpClient)),
		model:  cfg.model,
		dim:    cfg.dim,
	}
}

func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := o.client.Embed(ctx, o.model, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	return o.client.Embed(ctx, o.model, texts)
}

func (o *Ollama) Dimension() int { return o.dim }

func (o *Ollama) Model() string { return o.model }
