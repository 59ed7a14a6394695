package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimension matches the output size of common small sentence
// embedding models.
const DefaultHashDimension = 384

// stopWords carry no topical signal and are skipped before hashing.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"what": {}, "about": {}, "of": {}, "for": {}, "and": {}, "or": {}, "to": {},
	"in": {}, "on": {}, "with": {}, "how": {}, "why": {}, "who": {}, "which": {},
	"does": {}, "do": {}, "this": {}, "that": {}, "it": {}, "be": {}, "by": {},
	"as": {}, "at": {}, "from": {},
}

// Hash is a deterministic bag-of-words embedder. Each non-stop-word token is
// hashed with FNV-1a into one of Dimension() buckets with a hash-derived
// sign, and the result is L2-normalised. Texts sharing vocabulary land close
// together, which is enough for small corpora and for tests.
type Hash struct {
	dim int
}

var _ Embedder = (*Hash)(nil)

// NewHash creates a hash embedder. Non-positive dimensions fall back to
// [DefaultHashDimension].
func NewHash(dim int) *Hash {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &Hash{dim: dim}
}

// Embed returns the hashed vector for text. Text with no content tokens
// yields the zero vector.
func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dim)
	for _, tok := range Tokenize(text) {
		hv := fnv.New64a()
		_, _ = hv.Write([]byte(tok))
		sum := hv.Sum64()
		sign := float32(1)
		if sum>>63 == 1 {
			sign = -1
		}
		vec[sum%uint64(h.dim)] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// EmbedBatch embeds each text in order.
func (h *Hash) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimension returns the vector size.
func (h *Hash) Dimension() int { return h.dim }

// Model identifies the hashing scheme for cache keys.
func (h *Hash) Model() string { return "fnv1a-bow-v1" }

// Tokenize lower-cases text, splits it on anything that is not a letter or
// digit and drops stop words.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; !stop {
			out = append(out, f)
		}
	}
	return out
}
