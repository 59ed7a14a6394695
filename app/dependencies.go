package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/rag-pipeline/config"
	"github.com/upb/rag-pipeline/internal/ollama"
	"github.com/upb/rag-pipeline/internal/providers"
	"github.com/upb/rag-pipeline/repositories"
	"github.com/upb/rag-pipeline/repositories/badgerdb"
	"github.com/upb/rag-pipeline/repositories/postgres"
	"github.com/upb/rag-pipeline/services/corpus"
	"github.com/upb/rag-pipeline/services/embedding"
	"github.com/upb/rag-pipeline/services/generation"
	"github.com/upb/rag-pipeline/services/index"
	"github.com/upb/rag-pipeline/services/rag"
	"github.com/upb/rag-pipeline/services/retrieval"
	"github.com/upb/rag-pipeline/services/retry"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB // nil unless a database is configured
	Logger *zap.Logger

	// Repositories
	Documents repositories.DocumentRepository
	Cache     repositories.EmbeddingCache // nil when the build cache is disabled

	// Model backends, constructed once
	Models *ModelRegistry

	// Fence opens once Build has completed
	Fence *Fence

	// Set by Build; read without locks after the fence opens
	Store     *corpus.Store
	Index     index.Index
	Retriever *retrieval.Retriever
	Generator *generation.Generator
	RAG       *rag.Service

	ownsDB    bool
	ownsCache bool
}

// Option overrides a dependency, mainly for tests
type Option func(*Dependencies)

// WithDB uses an existing database pool instead of opening one
func WithDB(db *postgres.DB) Option {
	return func(d *Dependencies) { d.DB = db }
}

// WithCache uses an existing embedding cache instead of opening one
func WithCache(c repositories.EmbeddingCache) Option {
	return func(d *Dependencies) { d.Cache = c }
}

// NewDependencies creates and wires up all application dependencies except
// the corpus-derived ones, which Build produces.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
		Fence:  NewFence(),
	}
	for _, opt := range opts {
		opt(deps)
	}

	// Initialize PostgreSQL
	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize embedding cache
	if err := deps.initCache(cfg); err != nil {
		deps.closeResources()
		return nil, fmt.Errorf("failed to initialize embedding cache: %w", err)
	}

	// Initialize model registry
	if err := deps.initModels(ctx, cfg); err != nil {
		deps.closeResources()
		return nil, fmt.Errorf("failed to initialize models: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase opens the PostgreSQL pool when one is configured
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if d.DB == nil {
		if cfg.Database == nil {
			d.Logger.Info("no database configured")
			return nil
		}
		db, err := postgres.NewDB(ctx, *cfg.Database, d.Logger)
		if err != nil {
			return err
		}
		d.DB = db
		d.ownsDB = true
	}

	if cfg.Corpus.Source == config.CorpusSourcePostgres {
		if err := d.DB.InitSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	d.Documents = postgres.NewDocumentRepository(d.DB, d.Logger)
	return nil
}

// initCache opens the badger embedding cache when a directory is configured
func (d *Dependencies) initCache(cfg *config.Config) error {
	if d.Cache != nil || cfg.Embedding.CacheDir == "" {
		return nil
	}
	cache, err := badgerdb.Open(badgerdb.Options{Dir: cfg.Embedding.CacheDir}, d.Logger)
	if err != nil {
		return err
	}
	d.Cache = cache
	d.ownsCache = true
	return nil
}

// initModels constructs the configured embedding and generation backends
func (d *Dependencies) initModels(ctx context.Context, cfg *config.Config) error {
	registry := NewModelRegistry(d.Logger)
	policy := retryPolicy(cfg.Retry)

	e, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	registry.RegisterEmbedder(cfg.Embedding.Provider, embedding.NewRetrying(e, policy, d.Logger))

	b, err := newBackend(ctx, cfg)
	if err != nil {
		return err
	}
	registry.RegisterGenerator(generation.NewRetryingBackend(b, policy, d.Logger))

	d.Models = registry
	return nil
}

func retryPolicy(cfg config.RetryConfig) retry.Policy {
	return retry.Policy{
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
	}
}

func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	opts := []embedding.Option{
		embedding.WithDimension(cfg.Embedding.Dimension),
		embedding.WithHTTPClient(&http.Client{Timeout: cfg.Embedding.Timeout}),
	}
	if cfg.Embedding.Model != "" {
		opts = append(opts, embedding.WithModel(cfg.Embedding.Model))
	}

	switch embedding.Provider(cfg.Embedding.Provider) {
	case embedding.ProviderHash:
		return embedding.NewHash(cfg.Embedding.Dimension), nil
	case embedding.ProviderOpenAI:
		if cfg.Providers.OpenAI.BaseURL != "" {
			opts = append(opts, embedding.WithBaseURL(cfg.Providers.OpenAI.BaseURL))
		}
		return embedding.NewOpenAI(cfg.Providers.OpenAI.APIKey, opts...), nil
	case embedding.ProviderOllama:
		opts = append(opts, embedding.WithBaseURL(cfg.Providers.Ollama.BaseURL))
		return embedding.NewOllama(opts...), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

func newBackend(ctx context.Context, cfg *config.Config) (generation.Backend, error) {
	switch cfg.Generation.Provider {
	case "extractive":
		return generation.Extractive{}, nil
	case "openai":
		return generation.NewOpenAI(providers.OpenAIConfig{
			APIKey:  cfg.Providers.OpenAI.APIKey,
			BaseURL: cfg.Providers.OpenAI.BaseURL,
		}, cfg.Generation.Model), nil
	case "gemini":
		return generation.NewGemini(ctx, cfg.Providers.Gemini.APIKey, cfg.Generation.Model)
	case "ollama":
		client := ollama.NewClient(ollama.WithBaseURL(cfg.Providers.Ollama.BaseURL))
		return generation.NewOllama(client, cfg.Generation.Model), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Generation.Provider)
	}
}

// CorpusLoader selects the corpus source named by the configuration
func (d *Dependencies) CorpusLoader() (corpus.Loader, error) {
	cfg := d.Config.Corpus
	switch cfg.Source {
	case config.CorpusSourceInline:
		return corpus.NewStatic(nil), nil
	case config.CorpusSourceFile:
		return corpus.NewFile(cfg.Path), nil
	case config.CorpusSourcePostgres:
		if d.Documents == nil {
			return nil, errors.New("postgres corpus requires a database")
		}
		return corpus.NewRepositoryLoader(d.Documents, d.Logger), nil
	case config.CorpusSourceS3:
		return corpus.NewS3(corpus.NewS3Client(cfg.S3), cfg.S3.Bucket, cfg.S3.Key), nil
	default:
		return nil, fmt.Errorf("unknown corpus source %q", cfg.Source)
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	errs := d.closeResources()

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}

	return nil
}

func (d *Dependencies) closeResources() []error {
	var errs []error

	if d.ownsCache && d.Cache != nil {
		if err := d.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close embedding cache: %w", err))
		}
		d.ownsCache = false
	}

	if d.ownsDB && d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.ownsDB = false
	}

	return errs
}
