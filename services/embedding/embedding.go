// Package embedding maps text to fixed-dimension vectors.
//
// Three backends are provided:
//
//   - [Hash]: deterministic local feature hashing, no model required
//   - [OpenAI]: any OpenAI-compatible /embeddings endpoint
//   - [Ollama]: a local Ollama server
//
// Wrap a backend with [NewChecked] before handing it to the retriever so
// that dimension errors and model failures surface as domain errors, and
// with [NewRetrying] to add a bounded retry policy.
package embedding

import (
	"context"
	"errors"
	"net/http"
)

// Embedder converts text into dense float32 vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order. Each vector
	// equals what Embed returns for the same text.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors.
	Dimension() int
}

// Provider names an embedding backend in configuration.
type Provider string

const (
	ProviderHash   Provider = "hash"
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
)

// ErrEmptyInput is returned when a remote backend is asked to embed nothing.
var ErrEmptyInput = errors.New("embedding: empty input")

// config holds shared configuration for embedder implementations.
type config struct {
	model      string
	dim        int
	baseURL    string
	httpClient *http.Client
}

// Option configures an embedder.
type Option func(*config)

// WithModel sets the embedding model name.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithDimension sets the output vector dimensionality.
func WithDimension(dim int) Option {
	return func(c *config) { c.dim = dim }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *config) { c.httpClient = client }
}

func newConfig(model string, dim int, opts []Option) config {
	cfg := config{model: model, dim: dim, httpClient: http.DefaultClient}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}
