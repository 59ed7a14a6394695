package generation

import (
	"context"

	"github.com/upb/rag-pipeline/internal/ollama"
)

const ollamaDefaultModel = "llama3.2"

// Ollama generates answers with a model served by a local Ollama instance.
type Ollama struct {
	client *ollama.Client
	model  string
}

var _ Backend = (*Ollama)(nil)

// NewOllama creates an Ollama backend.
func NewOllama(client *ollama.Client, model string) *Ollama {
	if model == "" {
		model = ollamaDefaultModel
	}
	return &Ollama{client: client, model: model}
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Complete(ctx context.Context, req *Request) (string, error) {
	return o.client.Generate(ctx, o.model, req.Prompt, ollama.GenerateOptions{
		Temperature: req.Temperature,
		NumPredict:  req.MaxTokens,
	})
}
