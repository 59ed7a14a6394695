package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/upb/rag-pipeline/services"
	"github.com/upb/rag-pipeline/services/corpus"
	"github.com/upb/rag-pipeline/services/embedding"
	"github.com/upb/rag-pipeline/services/generation"
	"github.com/upb/rag-pipeline/services/index"
	"github.com/upb/rag-pipeline/services/rag"
	"github.com/upb/rag-pipeline/services/retrieval"
)

// Build runs the startup phase: load the corpus, embed it, build the index
// and wire the retriever, generator and pipeline. The fence opens on success
// and records the error on failure.
func (d *Dependencies) Build(ctx context.Context) error {
	if err := d.build(ctx); err != nil {
		d.Fence.Fail(err)
		d.Logger.Error("build failed", zap.Error(err))
		return err
	}
	d.Fence.Open()
	return nil
}

func (d *Dependencies) build(ctx context.Context) error {
	start := time.Now()
	cfg := d.Config

	loader, err := d.CorpusLoader()
	if err != nil {
		return err
	}
	store, err := corpus.Load(ctx, loader, d.Logger)
	if err != nil {
		return err
	}

	e, ok := d.Models.Embedder(cfg.Embedding.Provider)
	if !ok {
		return fmt.Errorf("embedder %q is not registered", cfg.Embedding.Provider)
	}
	checked := embedding.NewChecked(e)
	vectors, err := d.EmbedCorpus(ctx, checked, store.Texts())
	if err != nil {
		return fmt.Errorf("failed to embed corpus: %w", err)
	}

	idx, err := d.buildIndex(vectors)
	if err != nil {
		return fmt.Errorf("failed to build index: %w", err)
	}

	retriever, err := retrieval.NewRetriever(checked, idx, store, d.Logger)
	if err != nil {
		return err
	}

	b, ok := d.Models.Generator(cfg.Generation.Provider)
	if !ok {
		return fmt.Errorf("generator %q is not registered", cfg.Generation.Provider)
	}
	generator, err := generation.NewGenerator(b, cfg.Generation.PromptTemplate, nil, d.Logger)
	if err != nil {
		return err
	}

	svc, err := rag.NewService(retriever, generator, rag.Options{
		TopK:          cfg.Retrieval.TopK,
		MaxTopK:       cfg.Retrieval.MaxTopK,
		MaxConcurrent: cfg.MaxConcurrentRequests,
		Params: generation.Params{
			MaxLength:   cfg.Generation.MaxLength,
			Temperature: cfg.Generation.Temperature,
			Timeout:     cfg.Generation.Timeout,
		},
	}, d.Logger)
	if err != nil {
		return err
	}

	d.Store = store
	d.Index = idx
	d.Retriever = retriever
	d.Generator = generator
	d.RAG = svc

	d.Logger.Info("pipeline ready",
		zap.Int("documents", store.Len()),
		zap.String("index", cfg.Retrieval.IndexKind),
		zap.String("embedder", cfg.Embedding.Provider),
		zap.String("generator", generator.Backend()),
		zap.Duration("took", time.Since(start)))
	return nil
}

func (d *Dependencies) buildIndex(vectors [][]float32) (index.Index, error) {
	r := d.Config.Retrieval
	if index.Kind(r.IndexKind) == index.KindHNSW {
		return index.BuildHNSW(vectors, index.HNSWConfig{
			M:              r.HNSWM,
			EfConstruction: r.HNSWEfConstruct,
			EfSearch:       r.HNSWEfSearch,
		})
	}
	return index.Build(vectors)
}

// CacheNamespace identifies the vectors of one embedding model in the cache.
func CacheNamespace(provider string, e embedding.Embedder) string {
	return fmt.Sprintf("%s/%s/%d", provider, embedding.ModelName(e), e.Dimension())
}

// EmbedCorpus embeds texts in batches, with up to BuildWorkers batches in
// flight. Vectors already in the cache are reused and new ones are stored.
// The result is in input order.
func (d *Dependencies) EmbedCorpus(ctx context.Context, e embedding.Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}
	namespace := CacheNamespace(d.Config.Embedding.Provider, e)

	if d.Cache != nil {
		cached, err := d.Cache.GetMany(ctx, namespace, texts)
		if err != nil {
			d.Logger.Warn("embedding cache read failed", zap.Error(err))
		} else {
			copy(out, cached)
		}
	}

	var missing []int
	for i, v := range out {
		if v == nil {
			missing = append(missing, i)
		}
	}
	d.Logger.Info("embedding corpus",
		zap.Int("documents", len(texts)),
		zap.Int("cached", len(texts)-len(missing)),
		zap.String("namespace", namespace))
	if len(missing) == 0 {
		return out, nil
	}

	batchSize := max(d.Config.Embedding.BatchSize, 1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(d.Config.Embedding.BuildWorkers, 1))
	for lo := 0; lo < len(missing); lo += batchSize {
		positions := missing[lo:min(lo+batchSize, len(missing))]
		g.Go(func() error {
			batch := make([]string, len(positions))
			for j, p := range positions {
				batch[j] = texts[p]
			}
			vecs, err := e.EmbedBatch(gctx, batch)
			if err != nil {
				return services.WrapEmbedding(fmt.Sprintf("embed documents %d..%d", positions[0], positions[len(positions)-1]), err)
			}
			for j, p := range positions {
				out[p] = vecs[j]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if d.Cache != nil {
		newTexts := make([]string, len(missing))
		newVecs := make([][]float32, len(missing))
		for j, p := range missing {
			newTexts[j] = texts[p]
			newVecs[j] = out[p]
		}
		if err := d.Cache.PutMany(ctx, namespace, newTexts, newVecs); err != nil {
			d.Logger.Warn("embedding cache write failed", zap.Error(err))
		}
	}
	return out, nil
}
