package review

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const MaxCommentLength = 2000

var (
	ErrReviewNotFound  = errors.New("review not found")
	ErrAlreadyReviewed = errors.New("appointment already reviewed")
	ErrNotReviewable   = errors.New("only completed appointments can be reviewed")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrCommentTooLong  = errors.New("comment must be at most 2000 characters")
)

type Review struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	AppointmentID uuid.UUID `gorm:"column:appointment_id;type:uuid;not null;uniqueIndex" json:"appointment_id"`
	DoctorID      uuid.UUID `gorm:"column:doctor_id;type:uuid;not null;index" json:"doctor_id"`
	PatientID     uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index" json:"patient_id"`

	Rating  int    `gorm:"column:rating;not null" json:"rating"`
	Comment string `gorm:"column:comment;type:text" json:"comment,omitempty"`
}

func (Review) TableName() string {
	return "clinical.reviews"
}

// Validate checks rating bounds and comment length (in runes).
func (r *Review) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return ErrInvalidRating
	}
	if len([]rune(r.Comment)) > MaxCommentLength {
		return ErrCommentTooLong
	}
	return nil
}

type ListQuery struct {
	DoctorID uuid.UUID
	Page     int
	PageSize int
}

type PagedReviews struct {
	Reviews    []*Review
	TotalCount int64
	Page       int
	PageSize   int
	TotalPages int
}

// Aggregate is the rating summary of a doctor.
type Aggregate struct {
	Average float64
	Count   int
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Review, error)
	ListForDoctor(ctx context.Context, q *ListQuery) (*PagedReviews, error)

	// CreateAndAggregate inserts r and refreshes the doctor's cached rating
	// in one transaction. Returns ErrAlreadyReviewed on a duplicate.
	CreateAndAggregate(ctx context.Context, r *Review) (*Aggregate, error)

	// DeleteAndAggregate removes a review and refreshes the doctor's rating.
	DeleteAndAggregate(ctx context.Context, r *Review) (*Aggregate, error)
}
