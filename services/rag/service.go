// Package rag runs the retrieval-augmented answer pipeline: retrieve the
// nearest documents, then generate an answer conditioned on them.
package rag

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/upb/rag-pipeline/models"
	"github.com/upb/rag-pipeline/services"
	"github.com/upb/rag-pipeline/services/generation"
)

// Retriever fetches context documents for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.Document, error)
}

// Generator produces an answer from a query and its context.
type Generator interface {
	Generate(ctx context.Context, query string, docs []models.Document, p generation.Params) (string, error)
}

// Stage is a step of a pipeline run.
type Stage string

const (
	StageRetrieve Stage = "RETRIEVE"
	StageGenerate Stage = "GENERATE"
	StageDone     Stage = "DONE"
	StageFailed   Stage = "FAILED"
)

// Options configure a Service.
type Options struct {
	// TopK is used when a query does not set its own.
	TopK int
	// MaxTopK bounds a per-query TopK. Zero means no bound.
	MaxTopK int
	// MaxConcurrent bounds in-flight runs. Zero means unbounded.
	MaxConcurrent int
	// Params are the generation parameters for every run.
	Params generation.Params
}

// Run records one pass through the pipeline.
type Run struct {
	ID        string
	Query     models.Query
	Stage     Stage
	Documents []models.Document
	Answer    string
	Err       error
	Timings   map[Stage]time.Duration
}

func (r *Run) fail(err error) error {
	r.Stage = StageFailed
	r.Err = err
	return err
}

// Service is the single entry point for answering queries. Every call is
// computed in full; nothing is cached between calls.
type Service struct {
	retriever Retriever
	generator Generator
	opts      Options
	sem       *semaphore.Weighted
	logger    *zap.Logger
}

// NewService validates opts and creates a service.
func NewService(r Retriever, g Generator, opts Options, logger *zap.Logger) (*Service, error) {
	if r == nil || g == nil {
		return nil, services.WrapInternal("rag service requires a retriever and a generator", nil)
	}
	if opts.TopK <= 0 {
		return nil, services.InvalidArgument("top k must be positive, got %d", opts.TopK)
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{retriever: r, generator: g, opts: opts, logger: logger}
	if opts.MaxConcurrent > 0 {
		s.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	return s, nil
}

// Answer runs the pipeline for q.
func (s *Service) Answer(ctx context.Context, q models.Query) (*models.Response, error) {
	run, err := s.Execute(ctx, q)
	if err != nil {
		return nil, err
	}
	return &models.Response{Query: run.Query.Text, Answer: run.Answer}, nil
}

// Execute runs the pipeline and returns the run record. On failure the run is
// in StageFailed and carries the originating error, which is also returned.
func (s *Service) Execute(ctx context.Context, q models.Query) (*Run, error) {
	run := &Run{
		ID:      uuid.NewString(),
		Query:   q,
		Stage:   StageRetrieve,
		Timings: make(map[Stage]time.Duration, 2),
	}
	logger := s.logger.With(zap.String("run_id", run.ID))

	if strings.TrimSpace(q.Text) == "" {
		return run, run.fail(services.ErrEmptyQuery)
	}
	k, err := s.topK(q.TopK)
	if err != nil {
		return run, run.fail(err)
	}

	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			logger.Warn("no pipeline slot available", zap.Error(err))
			return run, run.fail(services.NewDomainError(services.ErrorTypeUnavailable, "no pipeline slot available", err))
		}
		defer s.sem.Release(1)
	}

	start := time.Now()
	docs, err := s.retriever.Retrieve(ctx, q.Text, k)
	run.Timings[StageRetrieve] = time.Since(start)
	if err != nil {
		logger.Warn("retrieval failed", zap.Error(err))
		return run, run.fail(err)
	}
	run.Documents = docs

	run.Stage = StageGenerate
	start = time.Now()
	answer, err := s.generator.Generate(ctx, q.Text, docs, s.opts.Params)
	run.Timings[StageGenerate] = time.Since(start)
	if err != nil {
		logger.Warn("generation failed", zap.Error(err))
		return run, run.fail(err)
	}

	run.Answer = answer
	run.Stage = StageDone
	logger.Debug("pipeline completed",
		zap.Int("k", k),
		zap.Int("documents", len(docs)),
		zap.Duration("retrieve", run.Timings[StageRetrieve]),
		zap.Duration("generate", run.Timings[StageGenerate]))
	return run, nil
}

func (s *Service) topK(requested int) (int, error) {
	switch {
	case requested == 0:
		return s.opts.TopK, nil
	case requested < 0:
		return 0, services.InvalidArgument("top_k must be positive, got %d", requested)
	case s.opts.MaxTopK > 0 && requested > s.opts.MaxTopK:
		return 0, services.InvalidArgument("top_k must be at most %d, got %d", s.opts.MaxTopK, requested)
	}
	return requested, nil
}
