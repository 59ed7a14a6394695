package providers

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/upb/rag-pipeline/services/retry"
)

// NewGeminiClient builds a Gemini API client for apiKey.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	return genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
}

// GeminiError converts a Gemini API error into a [retry.StatusError]. Other
// errors are returned unchanged.
func GeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &retry.StatusError{Backend: "gemini", StatusCode: apiErr.Code, Err: err}
	}
	return err
}
