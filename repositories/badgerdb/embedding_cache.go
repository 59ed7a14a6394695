// Package badgerdb persists build-time embeddings in BadgerDB so that
// restarting the service does not re-embed an unchanged corpus.
package badgerdb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/upb/rag-pipeline/repositories"
)

// Options configures the embedding cache.
type Options struct {
	// Dir is the directory for BadgerDB data files. Required unless InMemory.
	Dir string

	// InMemory runs BadgerDB without disk persistence, for tests.
	InMemory bool
}

// EmbeddingCache implements repositories.EmbeddingCache on BadgerDB.
type EmbeddingCache struct {
	db     *badger.DB
	logger *zap.Logger
}

var _ repositories.EmbeddingCache = (*EmbeddingCache)(nil)

// Open opens or creates the cache.
func Open(opts Options, logger *zap.Logger) (*EmbeddingCache, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("badgerdb: Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(zapLogger{logger.Sugar()})
	if opts.InMemory {
		dbOpts = dbOpts.WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedding cache: %w", err)
	}
	logger.Info("embedding cache opened", zap.String("dir", opts.Dir), zap.Bool("in_memory", opts.InMemory))
	return &EmbeddingCache{db: db, logger: logger}, nil
}

// Key derives the storage key for a text under a namespace, which should
// identify the provider, model and dimension.
func Key(namespace, text string) []byte {
	sum := sha256.Sum256([]byte(text))
	return []byte(namespace + "/" + hex.EncodeToString(sum[:]))
}

// GetMany returns one slot per text; misses are nil.
func (c *EmbeddingCache) GetMany(_ context.Context, namespace string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	err := c.db.View(func(txn *badger.Txn) error {
		for i, text := range texts {
			item, err := txn.Get(Key(namespace, text))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				var vec []float32
				if err := msgpack.Unmarshal(val, &vec); err != nil {
					return err
				}
				out[i] = vec
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding cache: %w", err)
	}
	return out, nil
}

// PutMany stores vectors[i] under texts[i].
func (c *EmbeddingCache) PutMany(_ context.Context, namespace string, texts []string, vectors [][]float32) error {
	if len(texts) != len(vectors) {
		return fmt.Errorf("badgerdb: %d texts but %d vectors", len(texts), len(vectors))
	}
	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	for i, text := range texts {
		val, err := msgpack.Marshal(vectors[i])
		if err != nil {
			return fmt.Errorf("failed to encode embedding: %w", err)
		}
		if err := wb.Set(Key(namespace, text), val); err != nil {
			return fmt.Errorf("failed to write embedding cache: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush embedding cache: %w", err)
	}
	c.logger.Debug("embeddings cached", zap.String("namespace", namespace), zap.Int("count", len(texts)))
	return nil
}

// Close closes the underlying database.
func (c *EmbeddingCache) Close() error {
	return c.db.Close()
}

// zapLogger routes badger's internal logging through zap. Info and debug
// output is demoted to debug.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Errorf(f string, v ...interface{})   { l.s.Errorf("badger: "+f, v...) }
func (l zapLogger) Warningf(f string, v ...interface{}) { l.s.Warnf("badger: "+f, v...) }
func (l zapLogger) Infof(f string, v ...interface{})    { l.s.Debugf("badger: "+f, v...) }
func (l zapLogger) Debugf(f string, v ...interface{})   { l.s.Debugf("badger: "+f, v...) }
