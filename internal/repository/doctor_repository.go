package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/doctor"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DoctorRepository struct {
	db *gorm.DB
}

func NewDoctorRepository(db *gorm.DB) *DoctorRepository {
	return &DoctorRepository{db: db}
}

func (r *DoctorRepository) GetByID(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	return r.get(ctx, "id = ?", id)
}

func (r *DoctorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*doctor.Doctor, error) {
	return r.get(ctx, "user_id = ?", userID)
}

func (r *DoctorRepository) get(ctx context.Context, cond string, arg any) (*doctor.Doctor, error) {
	var d doctor.Doctor
	err := r.db.WithContext(ctx).
		Where(cond, arg).
		Where("deleted_at IS NULL").
		First(&d).Error
	if notFound(err) {
		return nil, doctor.ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting doctor: %w", err)
	}
	return &d, nil
}

// Columns owned by each writer. Ratings belong to the review repository.
var (
	doctorProfileColumns = []string{
		"first_name", "last_name", "specialization", "qualifications", "languages",
		"years_experience", "bio", "consultation_fee", "offers_online", "offers_in_person",
		"clinic_address", "city", "country", "latitude", "longitude", "slot_minutes",
	}
	doctorAvailabilityColumns = []string{"availability", "timezone"}
	doctorVerificationColumns = []string{"is_verified", "verified_at", "verified_by"}
)

func (r *DoctorRepository) UpdateProfile(ctx context.Context, d *doctor.Doctor) error {
	return r.update(ctx, d, "profile", doctorProfileColumns)
}

func (r *DoctorRepository) UpdateAvailability(ctx context.Context, d *doctor.Doctor) error {
	return r.update(ctx, d, "availability", doctorAvailabilityColumns)
}

func (r *DoctorRepository) UpdateVerification(ctx context.Context, d *doctor.Doctor) error {
	return r.update(ctx, d, "verification", doctorVerificationColumns)
}

func (r *DoctorRepository) update(ctx context.Context, d *doctor.Doctor, what string, columns []string) error {
	res := r.db.WithContext(ctx).
		Model(&doctor.Doctor{}).
		Where("id = ? AND deleted_at IS NULL", d.ID).
		Select(columns).
		Updates(d)
	if res.Error != nil {
		return fmt.Errorf("updating doctor %s: %w", what, res.Error)
	}
	if res.RowsAffected == 0 {
		return doctor.ErrDoctorNotFound
	}
	return nil
}

// filtered applies every non-distance filter of q to verified doctors.
func (r *DoctorRepository) filtered(ctx context.Context, q *doctor.SearchQuery) (*gorm.DB, error) {
	db := r.db.WithContext(ctx).
		Model(&doctor.Doctor{}).
		Where("deleted_at IS NULL AND is_verified = ?", true)

	if s := strings.TrimSpace(q.Name); s != "" {
		db = db.Where("LOWER(first_name || ' ' || last_name) LIKE ?", "%"+escapeLike(strings.ToLower(s))+"%")
	}
	if s := strings.TrimSpace(q.Specialization); s != "" {
		db = db.Where("LOWER(specialization) = ?", strings.ToLower(s))
	}
	if s := strings.TrimSpace(q.City); s != "" {
		db = db.Where("LOWER(city) = ?", strings.ToLower(s))
	}
	if s := strings.TrimSpace(q.Language); s != "" {
		lang, err := json.Marshal([]string{s})
		if err != nil {
			return nil, err
		}
		db = db.Where("languages::jsonb @> ?::jsonb", string(lang))
	}
	if q.Mode != nil {
		switch *q.Mode {
		case doctor.ModeOnline:
			db = db.Where("offers_online = ?", true)
		case doctor.ModeInPerson:
			db = db.Where("offers_in_person = ?", true)
		}
	}
	if q.MinFee != nil {
		db = db.Where("consultation_fee >= ?", *q.MinFee)
	}
	if q.MaxFee != nil {
		db = db.Where("consultation_fee <= ?", *q.MaxFee)
	}
	if q.MinRating != nil {
		db = db.Where("rating_average >= ?", *q.MinRating)
	}
	return db, nil
}

func orderFor(sort doctor.SortField) string {
	switch sort {
	case doctor.SortFee:
		return "consultation_fee ASC, rating_average DESC, id"
	case doctor.SortExperience:
		return "years_experience DESC, rating_average DESC, id"
	default:
		return "rating_average DESC, rating_count DESC, id"
	}
}

func (r *DoctorRepository) Search(ctx context.Context, q *doctor.SearchQuery) (*doctor.PagedDoctors, error) {
	page, size := normalizePage(q.Page, q.PageSize)

	db, err := r.filtered(ctx, q)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting doctors: %w", err)
	}

	var doctors []*doctor.Doctor
	if err := db.Order(orderFor(q.SortBy)).Offset(offset(page, size)).Limit(size).Find(&doctors).Error; err != nil {
		return nil, fmt.Errorf("searching doctors: %w", err)
	}

	return &doctor.PagedDoctors{
		Doctors:    doctors,
		TotalCount: total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages(total, size),
	}, nil
}

func (r *DoctorRepository) SearchAll(ctx context.Context, q *doctor.SearchQuery) ([]*doctor.Doctor, error) {
	db, err := r.filtered(ctx, q)
	if err != nil {
		return nil, err
	}
	var doctors []*doctor.Doctor
	if err := db.Order(orderFor(q.SortBy)).Find(&doctors).Error; err != nil {
		return nil, fmt.Errorf("searching doctors: %w", err)
	}
	return doctors, nil
}

func (r *DoctorRepository) ListPending(ctx context.Context, q *doctor.ListPendingQuery) (*doctor.PagedDoctors, error) {
	page, size := normalizePage(q.Page, q.PageSize)

	db := r.db.WithContext(ctx).
		Model(&doctor.Doctor{}).
		Where("deleted_at IS NULL AND is_verified = ?", false)

	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting pending doctors: %w", err)
	}

	var doctors []*doctor.Doctor
	if err := db.Order("created_at ASC").Offset(offset(page, size)).Limit(size).Find(&doctors).Error; err != nil {
		return nil, fmt.Errorf("listing pending doctors: %w", err)
	}

	return &doctor.PagedDoctors{
		Doctors:    doctors,
		TotalCount: total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages(total, size),
	}, nil
}

func (r *DoctorRepository) CountVerified(ctx context.Context) (int64, int64, error) {
	var row struct {
		Verified int64
		Pending  int64
	}
	err := r.db.WithContext(ctx).
		Model(&doctor.Doctor{}).
		Select("COUNT(*) FILTER (WHERE is_verified) AS verified, COUNT(*) FILTER (WHERE NOT is_verified) AS pending").
		Where("deleted_at IS NULL").
		Scan(&row).Error
	if err != nil {
		return 0, 0, fmt.Errorf("counting doctors: %w", err)
	}
	return row.Verified, row.Pending, nil
}
