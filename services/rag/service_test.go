package rag

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/upb/rag-pipeline/models"
	"github.com/upb/rag-pipeline/services"
	"github.com/upb/rag-pipeline/services/corpus"
	"github.com/upb/rag-pipeline/services/embedding"
	"github.com/upb/rag-pipeline/services/generation"
	"github.com/upb/rag-pipeline/services/index"
	"github.com/upb/rag-pipeline/services/retrieval"
)

var testParams = generation.Params{MaxLength: 100, Timeout: time.Second}

// countingEmbedder counts calls to the wrapped embedder.
type countingEmbedder struct {
	embedding.Embedder
	calls atomic.Int32
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.Embedder.Embed(ctx, text)
}

// countingBackend counts generation calls.
type countingBackend struct {
	generation.Backend
	calls atomic.Int32
}

func (c *countingBackend) Complete(ctx context.Context, req *generation.Request) (string, error) {
	c.calls.Add(1)
	return c.Backend.Complete(ctx, req)
}

type pipeline struct {
	service  *Service
	embedder *countingEmbedder
	backend  *countingBackend
	retr     *retrieval.Retriever
	gen      *generation.Generator
}

func newPipeline(t *testing.T, docs []models.Document) *pipeline {
	t.Helper()
	logger := zaptest.NewLogger(t)

	e := &countingEmbedder{Embedder: embedding.NewHash(embedding.DefaultHashDimension)}
	vecs, err := e.Embedder.EmbedBatch(context.Background(), models.Texts(docs))
	require.NoError(t, err)
	idx, err := index.Build(vecs)
	require.NoError(t, err)
	r, err := retrieval.NewRetriever(e, idx, corpus.NewStore(docs), logger)
	require.NoError(t, err)

	b := &countingBackend{Backend: generation.Extractive{}}
	g, err := generation.NewGenerator(b, "", nil, logger)
	require.NoError(t, err)

	s, err := NewService(r, g, Options{TopK: 3, MaxConcurrent: 4, Params: testParams}, logger)
	require.NoError(t, err)
	return &pipeline{service: s, embedder: e, backend: b, retr: r, gen: g}
}

func TestEndToEnd_ThreeDocuments(t *testing.T) {
	p := newPipeline(t, corpus.SampleDocuments)
	ctx := context.Background()

	docs, err := p.retr.Retrieve(ctx, "What is clustering?", 3)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "Document about drones and clustering techniques.", docs[0].Text)

	resp, err := p.service.Answer(ctx, models.Query{Text: "What is clustering?"})
	require.NoError(t, err)
	assert.Equal(t, "What is clustering?", resp.Query)
	assert.NotEmpty(t, resp.Answer)
}

func TestEndToEnd_EmptyCorpus(t *testing.T) {
	p := newPipeline(t, nil)
	ctx := context.Background()

	docs, err := p.retr.Retrieve(ctx, "What is clustering?", 3)
	require.NoError(t, err)
	assert.Empty(t, docs)

	answer, err := p.gen.Generate(ctx, "What is clustering?", docs, testParams)
	require.NoError(t, err)
	assert.NotEmpty(t, answer)

	resp, err := p.service.Answer(ctx, models.Query{Text: "What is clustering?"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Answer)
}

func TestAnswer_MissingQuery(t *testing.T) {
	p := newPipeline(t, corpus.SampleDocuments)

	for _, text := range []string{"", "   \n"} {
		resp, err := p.service.Answer(context.Background(), models.Query{Text: text})
		require.Error(t, err)
		assert.Nil(t, resp)
		assert.True(t, services.IsInvalidArgumentError(err))
	}
	assert.Zero(t, p.embedder.calls.Load(), "embedder must not be called")
	assert.Zero(t, p.backend.calls.Load(), "generator must not be called")
}

func TestAnswer_NoCaching(t *testing.T) {
	p := newPipeline(t, corpus.SampleDocuments)
	q := models.Query{Text: "What is clustering?"}

	first, err := p.service.Answer(context.Background(), q)
	require.NoError(t, err)
	second, err := p.service.Answer(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 2, p.embedder.calls.Load())
	assert.EqualValues(t, 2, p.backend.calls.Load())
}

// MockRetriever is a mock implementation of Retriever
type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, query string, k int) ([]models.Document, error) {
	args := m.Called(ctx, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Document), args.Error(1)
}

// MockGenerator is a mock implementation of Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, query string, docs []models.Document, p generation.Params) (string, error) {
	args := m.Called(ctx, query, docs, p)
	return args.String(0), args.Error(1)
}

func TestExecute_StageTransitions(t *testing.T) {
	docs := []models.Document{{ID: "a", Text: "alpha"}}

	t.Run("done", func(t *testing.T) {
		r, g := new(MockRetriever), new(MockGenerator)
		r.On("Retrieve", mock.Anything, "q", 3).Return(docs, nil)
		g.On("Generate", mock.Anything, "q", docs, testParams).Return("answer", nil)

		s, err := NewService(r, g, Options{TopK: 3, Params: testParams}, zaptest.NewLogger(t))
		require.NoError(t, err)
		run, err := s.Execute(context.Background(), models.Query{Text: "q"})
		require.NoError(t, err)
		assert.Equal(t, StageDone, run.Stage)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, docs, run.Documents)
		assert.Contains(t, run.Timings, StageRetrieve)
		assert.Contains(t, run.Timings, StageGenerate)
	})

	t.Run("retrieval failure skips generation", func(t *testing.T) {
		r, g := new(MockRetriever), new(MockGenerator)
		embedErr := services.NewDomainError(services.ErrorTypeEmbeddingFailure, "model down", nil)
		r.On("Retrieve", mock.Anything, "q", 3).Return(nil, embedErr)

		s, err := NewService(r, g, Options{TopK: 3, Params: testParams}, zaptest.NewLogger(t))
		require.NoError(t, err)
		run, err := s.Execute(context.Background(), models.Query{Text: "q"})
		require.Error(t, err)
		assert.Equal(t, StageFailed, run.Stage)
		assert.Same(t, embedErr, run.Err)
		g.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("generation failure has no partial answer", func(t *testing.T) {
		r, g := new(MockRetriever), new(MockGenerator)
		r.On("Retrieve", mock.Anything, "q", 3).Return(docs, nil)
		g.On("Generate", mock.Anything, "q", docs, testParams).Return("", services.ErrGenerationTimeout)

		s, err := NewService(r, g, Options{TopK: 3, Params: testParams}, zaptest.NewLogger(t))
		require.NoError(t, err)
		resp, err := s.Answer(context.Background(), models.Query{Text: "q"})
		assert.Nil(t, resp)
		assert.True(t, services.IsGenerationTimeoutError(err))
	})
}

func TestExecute_TopK(t *testing.T) {
	r, g := new(MockRetriever), new(MockGenerator)
	r.On("Retrieve", mock.Anything, "q", 5).Return([]models.Document{}, nil)
	g.On("Generate", mock.Anything, "q", mock.Anything, testParams).Return("answer", nil)

	s, err := NewService(r, g, Options{TopK: 3, MaxTopK: 10, Params: testParams}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = s.Answer(context.Background(), models.Query{Text: "q", TopK: 5})
	require.NoError(t, err)

	for _, k := range []int{-1, 11} {
		_, err = s.Answer(context.Background(), models.Query{Text: "q", TopK: k})
		assert.True(t, services.IsInvalidArgumentError(err), "top_k=%d", k)
	}
	r.AssertNumberOfCalls(t, "Retrieve", 1)
}

// blockingGenerator holds each call until released.
type blockingGenerator struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingGenerator) Generate(ctx context.Context, _ string, _ []models.Document, _ generation.Params) (string, error) {
	b.entered <- struct{}{}
	select {
	case <-b.release:
		return "answer", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestAnswer_ConcurrencyLimit(t *testing.T) {
	r := new(MockRetriever)
	r.On("Retrieve", mock.Anything, mock.Anything, mock.Anything).Return([]models.Document{}, nil)
	g := &blockingGenerator{entered: make(chan struct{}, 1), release: make(chan struct{})}

	s, err := NewService(r, g, Options{TopK: 1, MaxConcurrent: 1, Params: testParams}, zaptest.NewLogger(t))
	require.NoError(t, err)

	firstDone := make(chan error, 1)
	go func() {
		_, err := s.Answer(context.Background(), models.Query{Text: "first"})
		firstDone <- err
	}()
	<-g.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Answer(ctx, models.Query{Text: "second"})
	require.Error(t, err)
	assert.True(t, services.IsUnavailableError(err))

	close(g.release)
	require.NoError(t, <-firstDone)
}

func TestNewService_Validation(t *testing.T) {
	r, g := new(MockRetriever), new(MockGenerator)

	_, err := NewService(nil, g, Options{TopK: 1, Params: testParams}, nil)
	assert.Error(t, err)
	_, err = NewService(r, g, Options{TopK: 0, Params: testParams}, nil)
	assert.True(t, services.IsInvalidArgumentError(err))
	_, err = NewService(r, g, Options{TopK: 1}, nil)
	assert.True(t, services.IsInvalidArgumentError(err), "params must be valid")
}

func TestAnswer_ContextCanceledDuringRetrieve(t *testing.T) {
	r, g := new(MockRetriever), new(MockGenerator)
	r.On("Retrieve", mock.Anything, "q", 1).Return(nil, errors.New("context canceled"))

	s, err := NewService(r, g, Options{TopK: 1, Params: testParams}, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = s.Answer(context.Background(), models.Query{Text: "q"})
	assert.Error(t, err)
	g.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
