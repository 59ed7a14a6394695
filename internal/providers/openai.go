package providers

import (
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/upb/rag-pipeline/services/retry"
)

// OpenAIConfig selects the endpoint and credentials for an OpenAI-compatible API.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewOpenAIClient builds an SDK client with SDK-level retries disabled.
// Retries are applied by the pipeline's own policy instead.
func NewOpenAIClient(cfg OpenAIConfig) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return openai.NewClient(opts...)
}

// OpenAIError converts an SDK API error into a [retry.StatusError]. Other
// errors are returned unchanged.
func OpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &retry.StatusError{Backend: "openai", StatusCode: apiErr.StatusCode, Err: err}
	}
	return err
}
