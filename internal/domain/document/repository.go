package document

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, d *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	List(ctx context.Context, q *ListDocumentsQuery) (*PagedDocuments, error)

	// Delete soft-deletes the metadata row.
	Delete(ctx context.Context, id uuid.UUID) error
}
