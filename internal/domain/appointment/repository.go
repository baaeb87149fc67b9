package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, q *ListAppointmentsQuery) (*PagedAppointments, error)

	// SetMeeting stores the meeting fields of a only while the stored row is
	// confirmed and has no meeting. Reports whether the row was updated.
	SetMeeting(ctx context.Context, a *Appointment) (bool, error)

	// ClearMeeting blanks the meeting fields if they still hold meetingID.
	ClearMeeting(ctx context.Context, id uuid.UUID, meetingID string) error

	// UpdateStatusIf moves a to its current status only if the stored status
	// still equals from. Returns ErrInvalidStatusTransition when another
	// writer got there first.
	UpdateStatusIf(ctx context.Context, a *Appointment, from Status) error

	// HasDoctorConflict checks whether a doctor already holds an active
	// appointment overlapping [start, end).
	HasDoctorConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)

	// HasPatientConflict is HasDoctorConflict for the patient's calendar.
	HasPatientConflict(ctx context.Context, patientID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)

	// BusyIntervals returns the active appointments of a doctor that overlap [from, to).
	BusyIntervals(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Appointment, error)

	// HasCareRelationship reports whether the doctor has a confirmed or
	// completed appointment with the patient.
	HasCareRelationship(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error)

	// GetByMeetingID finds the appointment holding a provider meeting.
	GetByMeetingID(ctx context.Context, meetingID string) (*Appointment, error)

	// DueForReminder returns confirmed appointments starting in (now, now+lead]
	// that have not been reminded yet.
	DueForReminder(ctx context.Context, now time.Time, lead time.Duration) ([]*Appointment, error)

	// MarkReminded stamps reminder_sent_at only if it is still empty.
	MarkReminded(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	CountByStatus(ctx context.Context) (map[Status]int64, error)
}
