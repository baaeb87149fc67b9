package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// GetByID retrieves a patient by primary key. Returns ErrPatientNotFound if not found.
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// GetByUserID retrieves the patient profile linked to a user account.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Patient, error)

	// Save persists every column of an existing patient.
	Save(ctx context.Context, p *Patient) error
}
