package doctor

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)

	// UpdateProfile writes the fields a doctor edits on their own profile,
	// coordinates included. Verification and rating columns are untouched.
	UpdateProfile(ctx context.Context, d *Doctor) error

	// UpdateAvailability writes the weekly windows and timezone.
	UpdateAvailability(ctx context.Context, d *Doctor) error

	// UpdateVerification writes the verification flag and who set it.
	UpdateVerification(ctx context.Context, d *Doctor) error

	// Search returns one page of verified doctors matching q, ignoring
	// the distance parameters.
	Search(ctx context.Context, q *SearchQuery) (*PagedDoctors, error)

	// SearchAll is Search without pagination, for distance ranking.
	SearchAll(ctx context.Context, q *SearchQuery) ([]*Doctor, error)

	ListPending(ctx context.Context, q *ListPendingQuery) (*PagedDoctors, error)

	CountVerified(ctx context.Context) (verified int64, pending int64, err error)
}
