package postgres

import (
	"context"
	"fmt"

	"github.com/upb/rag-pipeline/models"
	"github.com/upb/rag-pipeline/repositories"
	"go.uber.org/zap"
)

// DocumentRepository implements the repositories.DocumentRepository interface
type DocumentRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *DB, logger *zap.Logger) repositories.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// List returns all documents ordered by position, then ID
func (r *DocumentRepository) List(ctx context.Context) ([]models.Document, error) {
	query := `
		SELECT id, text
		FROM documents
		ORDER BY position, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Text); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	r.logger.Debug("documents listed", zap.Int("count", len(docs)))
	return docs, nil
}

// Count returns the number of documents
func (r *DocumentRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}
