package repository

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/meeting"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CredentialRepository struct {
	db *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

func (r *CredentialRepository) Get(ctx context.Context, provider string) (*meeting.Credential, error) {
	var c meeting.Credential
	err := r.db.WithContext(ctx).Where("provider = ?", provider).First(&c).Error
	if notFound(err) {
		return nil, meeting.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting credential: %w", err)
	}
	return &c, nil
}

func (r *CredentialRepository) Upsert(ctx context.Context, c *meeting.Credential) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "expires_at", "updated_at"}),
		}).
		Create(c).Error
	if err != nil {
		return fmt.Errorf("storing credential: %w", err)
	}
	return nil
}
