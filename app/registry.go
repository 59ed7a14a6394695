package app

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/upb/rag-pipeline/services/embedding"
	"github.com/upb/rag-pipeline/services/generation"
)

// ModelInfo describes a registered model backend.
type ModelInfo struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Model     string `json:"model,omitempty"`
	Dimension int    `json:"dimension,omitempty"`
}

// ModelRegistry holds the embedding and generation backends constructed once
// at startup. Components receive handles from it explicitly.
type ModelRegistry struct {
	mu         sync.RWMutex
	embedders  map[string]embedding.Embedder
	generators map[string]generation.Backend
	logger     *zap.Logger
}

// NewModelRegistry creates an empty registry
func NewModelRegistry(logger *zap.Logger) *ModelRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelRegistry{
		embedders:  make(map[string]embedding.Embedder),
		generators: make(map[string]generation.Backend),
		logger:     logger,
	}
}

// RegisterEmbedder registers an embedder under name, replacing any previous one
func (r *ModelRegistry) RegisterEmbedder(name string, e embedding.Embedder) {
	r.mu.Lock()
	r.embedders[name] = e
	r.mu.Unlock()
	r.logger.Info("embedder registered",
		zap.String("name", name),
		zap.String("model", embedding.ModelName(e)),
		zap.Int("dimension", e.Dimension()))
}

// RegisterGenerator registers a generation backend under its own name
func (r *ModelRegistry) RegisterGenerator(b generation.Backend) {
	r.mu.Lock()
	r.generators[b.Name()] = b
	r.mu.Unlock()
	r.logger.Info("generator registered", zap.String("name", b.Name()))
}

// Embedder retrieves an embedder by name
func (r *ModelRegistry) Embedder(name string) (embedding.Embedder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.embedders[name]
	return e, ok
}

// Generator retrieves a generation backend by name
func (r *ModelRegistry) Generator(name string) (generation.Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.generators[name]
	return b, ok
}

// List returns every registered backend, embedders first, each group sorted by name
func (r *ModelRegistry) List() []ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ModelInfo, 0, len(r.embedders)+len(r.generators))
	for name, e := range r.embedders {
		out = append(out, ModelInfo{
			Kind:      "embedding",
			Name:      name,
			Model:     embedding.ModelName(e),
			Dimension: e.Dimension(),
		})
	}
	for name := range r.generators {
		out = append(out, ModelInfo{Kind: "generation", Name: name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Count returns the number of registered backends
func (r *ModelRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.embedders) + len(r.generators)
}
