package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/appointment"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// endsAtExpr is the end of an appointment in SQL.
const endsAtExpr = "scheduled_at + make_interval(mins => duration_mins)"

type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) Create(ctx context.Context, a *appointment.Appointment) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("creating appointment: %w", err)
	}
	return nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	return r.get(ctx, "id = ?", id)
}

func (r *AppointmentRepository) GetByMeetingID(ctx context.Context, meetingID string) (*appointment.Appointment, error) {
	return r.get(ctx, "meeting_id = ?", meetingID)
}

func (r *AppointmentRepository) get(ctx context.Context, cond string, arg any) (*appointment.Appointment, error) {
	var a appointment.Appointment
	err := r.db.WithContext(ctx).
		Where(cond, arg).
		Where("deleted_at IS NULL").
		First(&a).Error
	if notFound(err) {
		return nil, appointment.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting appointment: %w", err)
	}
	return &a, nil
}

func (r *AppointmentRepository) List(ctx context.Context, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	page, size := normalizePage(q.Page, q.PageSize)

	db := r.db.WithContext(ctx).Model(&appointment.Appointment{}).Where("deleted_at IS NULL")
	if q.PatientID != nil {
		db = db.Where("patient_id = ?", *q.PatientID)
	}
	if q.DoctorID != nil {
		db = db.Where("doctor_id = ?", *q.DoctorID)
	}
	if q.Status != nil {
		db = db.Where("status = ?", *q.Status)
	}
	if q.Mode != nil {
		db = db.Where("mode = ?", *q.Mode)
	}
	if q.DateFrom != nil {
		db = db.Where("scheduled_at >= ?", *q.DateFrom)
	}
	if q.DateTo != nil {
		db = db.Where("scheduled_at < ?", *q.DateTo)
	}

	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting appointments: %w", err)
	}

	var items []*appointment.Appointment
	if err := db.Order("scheduled_at DESC").Offset(offset(page, size)).Limit(size).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("listing appointments: %w", err)
	}

	return &appointment.PagedAppointments{
		Appointments: items,
		TotalCount:   total,
		Page:         page,
		PageSize:     size,
		TotalPages:   totalPages(total, size),
	}, nil
}

var meetingColumns = []string{"meeting_id", "meeting_join_url", "meeting_host_url", "meeting_passcode"}

func (r *AppointmentRepository) SetMeeting(ctx context.Context, a *appointment.Appointment) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("id = ? AND status = ? AND meeting_id = '' AND deleted_at IS NULL", a.ID, appointment.StatusConfirmed).
		Select(meetingColumns).
		Updates(a)
	if res.Error != nil {
		return false, fmt.Errorf("storing meeting: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *AppointmentRepository) ClearMeeting(ctx context.Context, id uuid.UUID, meetingID string) error {
	err := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("id = ? AND meeting_id = ?", id, meetingID).
		Updates(map[string]any{
			"meeting_id":       "",
			"meeting_join_url": "",
			"meeting_host_url": "",
			"meeting_passcode": "",
		}).Error
	if err != nil {
		return fmt.Errorf("clearing meeting: %w", err)
	}
	return nil
}

func (r *AppointmentRepository) UpdateStatusIf(ctx context.Context, a *appointment.Appointment, from appointment.Status) error {
	res := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("id = ? AND status = ? AND deleted_at IS NULL", a.ID, from).
		Select("status", "rejection_reason", "cancelled_at", "cancellation_reason", "cancelled_by",
			"accepted_at", "confirmed_at", "completed_at").
		Updates(a)
	if res.Error != nil {
		return fmt.Errorf("updating appointment status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return appointment.ErrInvalidStatusTransition
	}
	return nil
}

func (r *AppointmentRepository) HasDoctorConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	return r.hasConflict(ctx, "doctor_id", doctorID, start, end, excludeID)
}

func (r *AppointmentRepository) HasPatientConflict(ctx context.Context, patientID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	return r.hasConflict(ctx, "patient_id", patientID, start, end, excludeID)
}

func (r *AppointmentRepository) hasConflict(ctx context.Context, column string, id uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	db := r.overlapping(ctx, start, end).Where(column+" = ?", id)
	if excludeID != nil {
		db = db.Where("id <> ?", *excludeID)
	}
	var count int64
	if err := db.Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking conflicts: %w", err)
	}
	return count > 0, nil
}

func (r *AppointmentRepository) overlapping(ctx context.Context, start, end time.Time) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("deleted_at IS NULL AND status IN ?", appointment.ActiveStatuses).
		Where("scheduled_at < ? AND "+endsAtExpr+" > ?", end, start)
}

func (r *AppointmentRepository) BusyIntervals(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*appointment.Appointment, error) {
	var items []*appointment.Appointment
	err := r.overlapping(ctx, from, to).
		Where("doctor_id = ?", doctorID).
		Order("scheduled_at").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("loading busy intervals: %w", err)
	}
	return items, nil
}

func (r *AppointmentRepository) HasCareRelationship(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("doctor_id = ? AND patient_id = ? AND status IN ? AND deleted_at IS NULL",
			doctorID, patientID, appointment.CareStatuses).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking care relationship: %w", err)
	}
	return count > 0, nil
}

func (r *AppointmentRepository) DueForReminder(ctx context.Context, now time.Time, lead time.Duration) ([]*appointment.Appointment, error) {
	var items []*appointment.Appointment
	err := r.db.WithContext(ctx).
		Where("deleted_at IS NULL AND status = ? AND reminder_sent_at IS NULL", appointment.StatusConfirmed).
		Where("scheduled_at > ? AND scheduled_at <= ?", now, now.Add(lead)).
		Order("scheduled_at").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("loading reminders: %w", err)
	}
	return items, nil
}

func (r *AppointmentRepository) MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("id = ? AND reminder_sent_at IS NULL", id).
		Update("reminder_sent_at", at)
	if res.Error != nil {
		return false, fmt.Errorf("marking reminder: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *AppointmentRepository) CountByStatus(ctx context.Context) (map[appointment.Status]int64, error) {
	var rows []struct {
		Status appointment.Status
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Select("status, COUNT(*) AS count").
		Where("deleted_at IS NULL").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting appointments: %w", err)
	}
	out := make(map[appointment.Status]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
