package repository

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/review"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*review.Review, error) {
	var rv review.Review
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rv).Error
	if notFound(err) {
		return nil, review.ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting review: %w", err)
	}
	return &rv, nil
}

func (r *ReviewRepository) ListForDoctor(ctx context.Context, q *review.ListQuery) (*review.PagedReviews, error) {
	page, size := normalizePage(q.Page, q.PageSize)
	db := r.db.WithContext(ctx).Model(&review.Review{}).Where("doctor_id = ?", q.DoctorID)

	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting reviews: %w", err)
	}

	var items []*review.Review
	if err := db.Order("created_at DESC").Offset(offset(page, size)).Limit(size).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}

	return &review.PagedReviews{
		Reviews:    items,
		TotalCount: total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages(total, size),
	}, nil
}

func (r *ReviewRepository) CreateAndAggregate(ctx context.Context, rv *review.Review) (*review.Aggregate, error) {
	var agg *review.Aggregate
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rv).Error; err != nil {
			if _, ok := uniqueViolation(err); ok {
				return review.ErrAlreadyReviewed
			}
			return fmt.Errorf("creating review: %w", err)
		}
		var err error
		agg, err = refreshRating(tx, rv.DoctorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

func (r *ReviewRepository) DeleteAndAggregate(ctx context.Context, rv *review.Review) (*review.Aggregate, error) {
	var agg *review.Aggregate
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", rv.ID).Delete(&review.Review{})
		if res.Error != nil {
			return fmt.Errorf("deleting review: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return review.ErrReviewNotFound
		}
		var err error
		agg, err = refreshRating(tx, rv.DoctorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// refreshRating recomputes a doctor's cached rating from its reviews.
func refreshRating(tx *gorm.DB, doctorID uuid.UUID) (*review.Aggregate, error) {
	var agg review.Aggregate
	err := tx.Model(&review.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("doctor_id = ?", doctorID).
		Scan(&agg).Error
	if err != nil {
		return nil, fmt.Errorf("aggregating ratings: %w", err)
	}

	err = tx.Model(&doctor.Doctor{}).
		Where("id = ?", doctorID).
		Updates(map[string]any{
			"rating_average": agg.Average,
			"rating_count":   agg.Count,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("updating doctor rating: %w", err)
	}
	return &agg, nil
}
