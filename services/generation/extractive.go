package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/upb/rag-pipeline/services/embedding"
)

// Extractive answers with the context sentence sharing the most terms with
// the query. It needs no model and is deterministic, which makes it the
// offline default and the backend used in tests.
type Extractive struct{}

var _ Backend = Extractive{}

func (Extractive) Name() string { return "extractive" }

func (Extractive) Complete(ctx context.Context, req *Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	query := make(map[string]struct{})
	for _, tok := range embedding.Tokenize(req.Query) {
		query[tok] = struct{}{}
	}

	best, bestScore := "", 0
	for _, doc := range req.Context {
		for _, sentence := range splitSentences(doc) {
			score := 0
			for _, tok := range embedding.Tokenize(sentence) {
				if _, ok := query[tok]; ok {
					score++
				}
			}
			if score > bestScore {
				best, bestScore = sentence, score
			}
		}
	}

	switch {
	case best != "":
		return best, nil
	case len(req.Context) > 0:
		if s := splitSentences(req.Context[0]); len(s) > 0 {
			return s[0], nil
		}
	}
	return fmt.Sprintf("No supporting documents were found for the question: %s", strings.TrimSpace(req.Query)), nil
}

// splitSentences splits text after '.', '!' and '?' and drops blanks.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
