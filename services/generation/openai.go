package generation

import (
	"context"
	"errors"

	"github.com/openai/openai-go"

	"github.com/upb/rag-pipeline/internal/providers"
)

const openAIDefaultModel = "gpt-4o-mini"

// OpenAI generates answers with the chat completions API.
type OpenAI struct {
	client openai.Client
	model  string
}

var _ Backend = (*OpenAI)(nil)

// NewOpenAI creates a chat backend. An empty model selects gpt-4o-mini.
func NewOpenAI(cfg providers.OpenAIConfig, model string) *OpenAI {
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAI{client: providers.NewOpenAIClient(cfg), model: model}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Complete(ctx context.Context, req *Request) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:               o.model,
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Prompt)},
		MaxCompletionTokens: openai.Int(int64(req.MaxTokens)),
		Temperature:         openai.Float(req.Temperature),
	})
	if err != nil {
		return "", providers.OpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
