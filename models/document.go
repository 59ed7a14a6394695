package models

import (
	"fmt"
	"strings"
)

// Document is a single corpus passage. Documents are immutable once the
// corpus is loaded.
type Document struct {
	ID   string `json:"id" yaml:"id" db:"id"`
	Text string `json:"text" yaml:"text" db:"text"`
}

// NewDocument creates a document, trimming surrounding whitespace from text.
func NewDocument(id, text string) Document {
	return Document{ID: id, Text: strings.TrimSpace(text)}
}

// TableName returns the database table name
func (Document) TableName() string {
	return "documents"
}

// Validate checks that the document carries text.
func (d Document) Validate() error {
	if strings.TrimSpace(d.Text) == "" {
		return fmt.Errorf("document %q has no text", d.ID)
	}
	return nil
}

// Texts returns the text of each document in order.
func Texts(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Text
	}
	return out
}

// NormalizeCorpus validates docs and assigns "doc-<position>" to any document
// without an ID. IDs, given or assigned, must be unique. The input slice is
// not modified.
func NormalizeCorpus(docs []Document) ([]Document, error) {
	out := make([]Document, len(docs))
	seen := make(map[string]int, len(docs))
	for i, d := range docs {
		d = NewDocument(strings.TrimSpace(d.ID), d.Text)
		if d.ID == "" {
			d.ID = fmt.Sprintf("doc-%d", i)
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		if prev, dup := seen[d.ID]; dup {
			return nil, fmt.Errorf("position %d: duplicate document id %q, first used at position %d", i, d.ID, prev)
		}
		seen[d.ID] = i
		out[i] = d
	}
	return out, nil
}
