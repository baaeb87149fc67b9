package repository

import (
	"context"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"gorm.io/gorm"
)

// auditInsertChunk bounds the rows per INSERT so a large batch stays under
// the postgres parameter limit.
const auditInsertChunk = 100

// AuditRepository is append-only.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) CreateBatch(ctx context.Context, entries []*domain.AuditLog) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(entries, auditInsertChunk).Error
}
