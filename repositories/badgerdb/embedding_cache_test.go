package badgerdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestCache(t *testing.T) *EmbeddingCache {
	t.Helper()
	c, err := Open(Options{InMemory: true}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestEmbeddingCache_RoundTrip(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	texts := []string{"alpha", "beta"}
	vecs := [][]float32{{0.5, -0.5}, {1, 0}}
	require.NoError(t, c.PutMany(ctx, "hash/fnv1a/2", texts, vecs))

	got, err := c.GetMany(ctx, "hash/fnv1a/2", []string{"beta", "gamma", "alpha"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []float32{1, 0}, got[0])
	assert.Nil(t, got[1], "miss")
	assert.Equal(t, []float32{0.5, -0.5}, got[2])
}

func TestEmbeddingCache_NamespacesAreIsolated(t *testing.T) {
	c := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.PutMany(ctx, "openai/small/4", []string{"x"}, [][]float32{{1, 2, 3, 4}}))

	got, err := c.GetMany(ctx, "ollama/minilm/4", []string{"x"})
	require.NoError(t, err)
	assert.Nil(t, got[0])
}

func TestEmbeddingCache_LengthMismatch(t *testing.T) {
	c := openTestCache(t)
	err := c.PutMany(context.Background(), "ns", []string{"a", "b"}, [][]float32{{1}})
	assert.Error(t, err)
}

func TestOpen_RequiresDir(t *testing.T) {
	_, err := Open(Options{}, zap.NewNop())
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("ns", "text"), Key("ns", "text"))
	assert.NotEqual(t, Key("ns", "text"), Key("ns", "other"))
	assert.NotEqual(t, Key("a", "text"), Key("b", "text"))
}
