package repository

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/patient"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PatientRepository struct {
	db *gorm.DB
}

func NewPatientRepository(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*patient.Patient, error) {
	return r.get(ctx, "id = ?", id)
}

func (r *PatientRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*patient.Patient, error) {
	return r.get(ctx, "user_id = ?", userID)
}

func (r *PatientRepository) get(ctx context.Context, cond string, arg any) (*patient.Patient, error) {
	var p patient.Patient
	err := r.db.WithContext(ctx).
		Where(cond, arg).
		Where("deleted_at IS NULL").
		First(&p).Error
	if notFound(err) {
		return nil, patient.ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting patient: %w", err)
	}
	return &p, nil
}

func (r *PatientRepository) Save(ctx context.Context, p *patient.Patient) error {
	res := r.db.WithContext(ctx).Where("deleted_at IS NULL").Save(p)
	if res.Error != nil {
		return fmt.Errorf("saving patient: %w", res.Error)
	}
	return nil
}
