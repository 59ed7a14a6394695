// Package generation turns a query and its retrieved context into an answer
// with a bounded, deadline-limited call to a text generation backend.
package generation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/upb/rag-pipeline/models"
	"github.com/upb/rag-pipeline/services"
)

// DefaultPromptTemplate asks the model to answer from the retrieved
// documents. The document clause is dropped when there is no context.
const DefaultPromptTemplate = `{{if .Context}}Based on the following documents: {{.Context}}. {{end}}Answer the question: {{.Query}}`

// Params are the decoding parameters for one generation call.
type Params struct {
	// MaxLength bounds the answer, in tokens.
	MaxLength int
	// Temperature is the sampling temperature, 0 to 2.
	Temperature float64
	// Timeout is the deadline for the backend call. Zero means the caller's
	// context is the only deadline.
	Timeout time.Duration
}

// Validate checks that the parameters are usable.
func (p Params) Validate() error {
	if p.MaxLength <= 0 {
		return services.InvalidArgument("max length must be positive, got %d", p.MaxLength)
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return services.InvalidArgument("temperature must be between 0 and 2, got %g", p.Temperature)
	}
	if p.Timeout < 0 {
		return services.InvalidArgument("timeout must not be negative")
	}
	return nil
}

// Request is what a backend receives.
type Request struct {
	// Prompt is the fully rendered prompt.
	Prompt string
	// Query and Context are the inputs the prompt was built from.
	Query   string
	Context []string
	// MaxTokens is the decoding bound the backend should apply.
	MaxTokens   int
	Temperature float64
}

// Backend is a text generation model.
type Backend interface {
	Name() string
	Complete(ctx context.Context, req *Request) (string, error)
}

// promptData is the template input.
type promptData struct {
	Context string
	Query   string
}

// Generator renders prompts, calls a backend under a deadline and bounds the
// answer length. It is safe for concurrent use.
type Generator struct {
	backend   Backend
	tmpl      *template.Template
	tokenizer Tokenizer
	logger    *zap.Logger
}

// NewGenerator parses tmpl (empty selects [DefaultPromptTemplate]). A nil
// tokenizer selects [WhitespaceTokenizer].
func NewGenerator(b Backend, tmpl string, tok Tokenizer, logger *zap.Logger) (*Generator, error) {
	if b == nil {
		return nil, errors.New("generation: backend is required")
	}
	if tmpl == "" {
		tmpl = DefaultPromptTemplate
	}
	t, err := template.New("prompt").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("generation: parse prompt template: %w", err)
	}
	if tok == nil {
		tok = WhitespaceTokenizer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{backend: b, tmpl: t, tokenizer: tok, logger: logger}, nil
}

// Backend returns the name of the underlying backend.
func (g *Generator) Backend() string { return g.backend.Name() }

// Prompt renders the prompt for query and docs. Document texts are joined
// with a single space in retrieval order.
func (g *Generator) Prompt(query string, docs []models.Document) (string, error) {
	var buf bytes.Buffer
	data := promptData{Context: strings.Join(models.Texts(docs), " "), Query: query}
	if err := g.tmpl.Execute(&buf, data); err != nil {
		return "", services.WrapInternal("failed to render prompt", err)
	}
	return buf.String(), nil
}

type completion struct {
	text string
	err  error
}

// Generate answers query from docs. Empty docs are allowed; the backend is
// still asked to answer. A backend that misses the deadline yields
// GenerationTimeout; any other backend error or an empty answer yields
// GenerationFailure.
func (g *Generator) Generate(ctx context.Context, query string, docs []models.Document, p Params) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	prompt, err := g.Prompt(query, docs)
	if err != nil {
		return "", err
	}

	genCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.Timeout > 0 {
		genCtx, cancel = context.WithTimeout(ctx, p.Timeout)
	}
	defer cancel()

	req := &Request{
		Prompt:      prompt,
		Query:       query,
		Context:     models.Texts(docs),
		MaxTokens:   p.MaxLength,
		Temperature: p.Temperature,
	}

	start := time.Now()
	done := make(chan completion, 1)
	go func() {
		text, err := g.backend.Complete(genCtx, req)
		done <- completion{text: text, err: err}
	}()

	var res completion
	select {
	case res = <-done:
	case <-genCtx.Done():
		res = completion{err: genCtx.Err()}
	}
	elapsed := time.Since(start)

	if res.err != nil {
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			g.logger.Warn("generation timed out",
				zap.String("backend", g.backend.Name()),
				zap.Duration("timeout", p.Timeout),
				zap.Duration("elapsed", elapsed))
			return "", services.NewDomainError(services.ErrorTypeGenerationTimeout,
				fmt.Sprintf("%s did not answer within %s", g.backend.Name(), p.Timeout), res.err)
		}
		g.logger.Warn("generation failed", zap.String("backend", g.backend.Name()), zap.Error(res.err))
		return "", services.NewDomainError(services.ErrorTypeGenerationFailure,
			fmt.Sprintf("%s failed", g.backend.Name()), res.err)
	}

	answer := strings.TrimSpace(res.text)
	if answer == "" {
		return "", services.NewDomainError(services.ErrorTypeGenerationFailure,
			fmt.Sprintf("%s returned an empty answer", g.backend.Name()), nil)
	}
	if g.tokenizer.Count(answer) > p.MaxLength {
		answer = g.tokenizer.Truncate(answer, p.MaxLength)
	}

	g.logger.Debug("generation completed",
		zap.String("backend", g.backend.Name()),
		zap.Int("context_docs", len(docs)),
		zap.Int("prompt_chars", len(prompt)),
		zap.Duration("elapsed", elapsed))
	return answer, nil
}
