// Package corpus holds the immutable document collection and the loaders
// that supply it at startup.
package corpus

import (
	"fmt"

	"github.com/upb/rag-pipeline/models"
	"github.com/upb/rag-pipeline/services"
)

// Store maps corpus positions 0..n-1 to documents. It is read-only after
// construction and safe for concurrent use.
type Store struct {
	docs []models.Document
}

// NewStore copies docs into a new store.
func NewStore(docs []models.Document) *Store {
	cp := make([]models.Document, len(docs))
	copy(cp, docs)
	return &Store{docs: cp}
}

// Get returns the document at position.
func (s *Store) Get(position int) (models.Document, error) {
	if position < 0 || position >= len(s.docs) {
		return models.Document{}, services.NewDomainError(services.ErrorTypeIndexOutOfRange,
			fmt.Sprintf("position %d outside corpus of %d documents", position, len(s.docs)), nil).
			WithDetail("position", position).
			WithDetail("size", len(s.docs))
	}
	return s.docs[position], nil
}

// Len returns the number of documents.
func (s *Store) Len() int { return len(s.docs) }

// Texts returns document texts in position order.
func (s *Store) Texts() []string { return models.Texts(s.docs) }
