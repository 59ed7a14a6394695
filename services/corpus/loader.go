package corpus

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/upb/rag-pipeline/models"
	"github.com/upb/rag-pipeline/repositories"
)

// Loader supplies the ordered document set at startup.
type Loader interface {
	Load(ctx context.Context) ([]models.Document, error)
	Name() string
}

// SampleDocuments is the built-in demonstration corpus.
var SampleDocuments = []models.Document{
	{ID: "doc-0", Text: "Document about drones and clustering techniques."},
	{ID: "doc-1", Text: "Document about applications of machine learning."},
	{ID: "doc-2", Text: "Document about natural language processing for text classification."},
}

// Static serves a fixed, in-memory document list.
type Static struct {
	Docs []models.Document
}

// NewStatic returns a loader for docs. A nil slice yields the sample corpus;
// an empty non-nil slice yields an empty corpus.
func NewStatic(docs []models.Document) *Static {
	if docs == nil {
		docs = SampleDocuments
	}
	return &Static{Docs: docs}
}

func (s *Static) Load(context.Context) ([]models.Document, error) {
	out := make([]models.Document, len(s.Docs))
	copy(out, s.Docs)
	return out, nil
}

func (s *Static) Name() string { return "inline" }

// Repository loads documents from a DocumentRepository such as Postgres.
type Repository struct {
	repo   repositories.DocumentRepository
	logger *zap.Logger
}

// NewRepositoryLoader wraps repo as a Loader.
func NewRepositoryLoader(repo repositories.DocumentRepository, logger *zap.Logger) *Repository {
	return &Repository{repo: repo, logger: logger}
}

func (r *Repository) Load(ctx context.Context) ([]models.Document, error) {
	docs, err := r.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	r.logger.Info("corpus loaded from database", zap.Int("documents", len(docs)))
	return docs, nil
}

func (r *Repository) Name() string { return "postgres" }

// ErrEmptyCorpusFile is returned by [Decode] for input with no content.
var ErrEmptyCorpusFile = errors.New("corpus: document file is empty")

// corpusFile is the wrapped document format: `documents: [...]`.
type corpusFile struct {
	Documents []models.Document `yaml:"documents"`
}

// Decode parses a corpus from YAML or JSON. Both a bare list of documents
// and an object with a "documents" key are accepted. Entries may be plain
// strings, in which case they become the document text. Empty input is an
// error; an explicit empty list is an empty corpus.
func Decode(data []byte) ([]models.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyCorpusFile
	}

	var list []models.Document
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapped corpusFile
	if err := yaml.Unmarshal(data, &wrapped); err == nil && wrapped.Documents != nil {
		return wrapped.Documents, nil
	}

	var texts []string
	if err := yaml.Unmarshal(data, &texts); err == nil {
		docs := make([]models.Document, len(texts))
		for i, t := range texts {
			docs[i] = models.Document{Text: t}
		}
		return docs, nil
	}
	return nil, fmt.Errorf("corpus: unrecognised document format")
}

// Load runs l and normalises the result. Documents without an ID are named
// by position and blank documents are rejected.
func Load(ctx context.Context, l Loader, logger *zap.Logger) (*Store, error) {
	docs, err := l.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus from %s: %w", l.Name(), err)
	}
	docs, err = models.NormalizeCorpus(docs)
	if err != nil {
		return nil, fmt.Errorf("load corpus from %s: %w", l.Name(), err)
	}
	logger.Info("corpus ready", zap.String("source", l.Name()), zap.Int("documents", len(docs)))
	return NewStore(docs), nil
}
