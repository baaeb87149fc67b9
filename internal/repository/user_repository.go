package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/patient"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreatePatientAccount inserts the user and its patient profile atomically.
func (r *UserRepository) CreatePatientAccount(ctx context.Context, u *domain.User, p *patient.Patient) error {
	u.ID, p.ID = uuid.New(), uuid.New()
	u.PatientID = &p.ID
	p.UserID = u.ID

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return mapUserError(err)
		}
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("creating patient profile: %w", err)
		}
		return nil
	})
}

// CreateDoctorAccount inserts the user and its unverified doctor profile atomically.
func (r *UserRepository) CreateDoctorAccount(ctx context.Context, u *domain.User, d *doctor.Doctor) error {
	u.ID, d.ID = uuid.New(), uuid.New()
	u.DoctorID = &d.ID
	d.UserID = u.ID

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return mapUserError(err)
		}
		if err := tx.Create(d).Error; err != nil {
			if isUniqueViolationOn(err, "license") {
				return doctor.ErrLicenseTaken
			}
			return fmt.Errorf("creating doctor profile: %w", err)
		}
		return nil
	})
}

func mapUserError(err error) error {
	if isUniqueViolationOn(err, "email") {
		return domain.ErrEmailTaken
	}
	return fmt.Errorf("creating user: %w", err)
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&u).Error
	if notFound(err) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).
		Where("email = ? AND deleted_at IS NULL", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if notFound(err) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return &u, nil
}

// GetByDoctorID and GetByPatientID resolve the account behind a profile.
func (r *UserRepository) GetByDoctorID(ctx context.Context, doctorID uuid.UUID) (*domain.User, error) {
	return r.getBy(ctx, "doctor_id", doctorID)
}

func (r *UserRepository) GetByPatientID(ctx context.Context, patientID uuid.UUID) (*domain.User, error) {
	return r.getBy(ctx, "patient_id", patientID)
}

func (r *UserRepository) getBy(ctx context.Context, column string, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).
		Where(column+" = ? AND deleted_at IS NULL", id).
		First(&u).Error
	if notFound(err) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by %s: %w", column, err)
	}
	return &u, nil
}

// RecordLoginFailure increments the failure counter and locks the account
// once it reaches maxAttempts. A lock that expired before at restarts the
// count from one.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id uuid.UUID, maxAttempts int, lockFor time.Duration, at time.Time) error {
	const attempts = "CASE WHEN locked_until IS NOT NULL AND locked_until <= ? THEN 1 ELSE failed_login_count + 1 END"
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"failed_login_count": gorm.Expr(attempts, at),
			"locked_until": gorm.Expr(
				"CASE WHEN ("+attempts+") >= ? THEN ?::timestamptz WHEN locked_until <= ? THEN NULL ELSE locked_until END",
				at, maxAttempts, at.Add(lockFor), at,
			),
		}).Error
}

func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"failed_login_count": 0,
			"locked_until":       nil,
			"last_login_at":      at,
		}).Error
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string, changedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"password_hash":       hash,
			"password_changed_at": changedAt,
		}).Error
}

// Save persists the mutable account fields of u.
func (r *UserRepository) Save(ctx context.Context, u *domain.User) error {
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", u.ID).
		Select("first_name", "last_name", "phone", "is_active", "mfa_enabled", "mfa_secret").
		Updates(u).Error
}

func (r *UserRepository) List(ctx context.Context, q *domain.ListUsersQuery) (*domain.PagedUsers, error) {
	page, size := normalizePage(q.Page, q.PageSize)

	db := r.db.WithContext(ctx).Model(&domain.User{}).Where("deleted_at IS NULL")
	if q.Role != nil {
		db = db.Where("role = ?", *q.Role)
	}
	if q.IsActive != nil {
		db = db.Where("is_active = ?", *q.IsActive)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		like := "%" + escapeLike(strings.ToLower(s)) + "%"
		db = db.Where("LOWER(email) LIKE ? OR LOWER(first_name || ' ' || last_name) LIKE ?", like, like)
	}

	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}

	var users []*domain.User
	if err := db.Order("created_at DESC").Offset(offset(page, size)).Limit(size).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	return &domain.PagedUsers{
		Users:      users,
		TotalCount: total,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages(total, size),
	}, nil
}

func (r *UserRepository) CountByRole(ctx context.Context) (map[domain.Role]int64, error) {
	var rows []struct {
		Role  domain.Role
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Select("role, COUNT(*) AS count").
		Where("deleted_at IS NULL").
		Group("role").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting users by role: %w", err)
	}
	out := make(map[domain.Role]int64, len(rows))
	for _, row := range rows {
		out[row.Role] = row.Count
	}
	return out, nil
}
