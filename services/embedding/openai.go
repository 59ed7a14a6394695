package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/upb/rag-pipeline/internal/providers"
)

const (
	openAIMaxBatch     = 2048
	openAIDefaultDim   = 1536
	openAIDefaultModel = "text-embedding-3-small"
)

// OpenAI embeds text through an OpenAI-compatible /embeddings endpoint.
type OpenAI struct {
	client openai.Client
	model  string
	dim    int
}

var _ Embedder = (*OpenAI)(nil)

// NewOpenAI creates an OpenAI embedder. Model defaults to
// text-embedding-3-small at 1536 dimensions.
func NewOpenAI(apiKey string, opts ...Option) *OpenAI {
	cfg := newConfig(openAIDefaultModel, openAIDefaultDim, opts)
	return &OpenAI{
		client: providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:     apiKey,
			BaseURL:    cfg.baseURL,
			HTTPClient: cfg.httpClient,
		}),
		model: cfg.model,
		dim:   cfg.dim,
	}
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch splits inputs larger than the API limit into several calls.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}
	out := make([][]float32, len(texts))
	for i := 0; i < len(texts); i += openAIMaxBatch {
		end := min(i+openAIMaxBatch, len(texts))
		vecs, err := o.call(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", i, end, err)
		}
		copy(out[i:], vecs)
	}
	return out, nil
}

func (o *OpenAI) Dimension() int { return o.dim }

func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) call(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model:          o.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Dimensions:     openai.Int(int64(o.dim)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, providers.OpenAIError(err)
	}

	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= int64(len(texts)) {
			return nil, fmt.Errorf("unexpected embedding index %d for batch size %d", item.Index, len(texts))
		}
		v := make([]float32, len(item.Embedding))
		for j, f := range item.Embedding {
			v[j] = float32(f)
		}
		vecs[item.Index] = v
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}
	return vecs, nil
}
