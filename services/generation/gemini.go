package generation

import (
	"context"

	"google.golang.org/genai"

	"github.com/upb/rag-pipeline/internal/providers"
)

const geminiDefaultModel = "gemini-1.5-flash"

// GeminiModels is the part of the genai client the backend uses.
// *genai.Models satisfies it.
type GeminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini generates answers with Google Gemini.
type Gemini struct {
	models GeminiModels
	model  string
}

var _ Backend = (*Gemini)(nil)

// NewGemini creates a Gemini backend authenticated with apiKey.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := providers.NewGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return NewGeminiWithModels(client.Models, model), nil
}

// NewGeminiWithModels creates a backend over an existing models service.
func NewGeminiWithModels(m GeminiModels, model string) *Gemini {
	if model == "" {
		model = geminiDefaultModel
	}
	return &Gemini{models: m, model: model}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Complete(ctx context.Context, req *Request) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
		Temperature:     genai.Ptr(float32(req.Temperature)),
	})
	if err != nil {
		return "", providers.GeminiError(err)
	}
	return resp.Text(), nil
}
