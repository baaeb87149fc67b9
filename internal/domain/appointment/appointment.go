package appointment

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/doctor"
	"github.com/google/uuid"
)

const (
	MinDurationMins = 10
	MaxDurationMins = 240
)

type Status string

const (
	StatusAwaitingAcceptance Status = "awaiting_acceptance"
	StatusRejected           Status = "rejected"
	StatusPaymentPending     Status = "payment_pending"
	StatusCancelled          Status = "cancelled"
	StatusConfirmed          Status = "confirmed"
	StatusCompleted          Status = "completed"
)

// AllStatuses lists every state in lifecycle order.
var AllStatuses = []Status{
	StatusAwaitingAcceptance,
	StatusRejected,
	StatusPaymentPending,
	StatusCancelled,
	StatusConfirmed,
	StatusCompleted,
}

// transitions is the only place allowed state changes are declared.
//
//	awaiting_acceptance → payment_pending → confirmed → completed
//	awaiting_acceptance → rejected
//	awaiting_acceptance | payment_pending | confirmed → cancelled
var transitions = map[Status][]Status{
	StatusAwaitingAcceptance: {StatusPaymentPending, StatusRejected, StatusCancelled},
	StatusPaymentPending:     {StatusConfirmed, StatusCancelled},
	StatusConfirmed:          {StatusCompleted, StatusCancelled},
}

func (s Status) IsValid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether from → to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ActiveStatuses are the states that hold a slot in the doctor's calendar.
var ActiveStatuses = []Status{StatusAwaitingAcceptance, StatusPaymentPending, StatusConfirmed}

// CareStatuses are the states that give a doctor access to a patient's data.
var CareStatuses = []Status{StatusConfirmed, StatusCompleted}

type Appointment struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`

	PatientID uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index" json:"patient_id"`
	DoctorID  uuid.UUID `gorm:"column:doctor_id;type:uuid;not null;index" json:"doctor_id"`

	ScheduledAt  time.Time               `gorm:"column:scheduled_at;not null;index" json:"scheduled_at"`
	DurationMins int                     `gorm:"column:duration_mins;not null;default:30" json:"duration_mins"`
	Mode         doctor.ConsultationMode `gorm:"column:mode;type:varchar(20);not null" json:"mode"`
	Status       Status                  `gorm:"column:status;type:varchar(30);not null;default:'awaiting_acceptance';index" json:"status"`
	Reason       string                  `gorm:"column:reason;type:text" json:"reason,omitempty"`

	// Fee in minor units, copied from the doctor at booking time.
	Fee      int64  `gorm:"column:fee;not null;default:0" json:"fee"`
	Currency string `gorm:"column:currency;type:varchar(3);not null" json:"currency"`

	MeetingID       string `gorm:"column:meeting_id;type:varchar(64);index" json:"-"`
	MeetingJoinURL  string `gorm:"column:meeting_join_url;type:text" json:"-"`
	MeetingHostURL  string `gorm:"column:meeting_host_url;type:text" json:"-"`
	MeetingPasscode string `gorm:"column:meeting_passcode;type:varchar(32)" json:"-"`

	RejectionReason    string     `gorm:"column:rejection_reason;type:text" json:"rejection_reason,omitempty"`
	CancelledAt        *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason string     `gorm:"column:cancellation_reason;type:text" json:"cancellation_reason,omitempty"`
	CancelledBy        *uuid.UUID `gorm:"column:cancelled_by;type:uuid" json:"cancelled_by,omitempty"`
	AcceptedAt         *time.Time `gorm:"column:accepted_at" json:"accepted_at,omitempty"`
	ConfirmedAt        *time.Time `gorm:"column:confirmed_at" json:"confirmed_at,omitempty"`
	CompletedAt        *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	ReminderSentAt     *time.Time `gorm:"column:reminder_sent_at" json:"-"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null" json:"-"`
}

func (Appointment) TableName() string {
	return "clinical.appointments"
}

func (a *Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMins) * time.Minute)
}

func (a *Appointment) CanTransitionTo(next Status) bool {
	return CanTransition(a.Status, next)
}

// TransitionTo moves a to next and stamps the matching timestamp.
func (a *Appointment) TransitionTo(next Status, at time.Time) error {
	if !a.CanTransitionTo(next) {
		return ErrInvalidStatusTransition
	}
	a.Status = next
	switch next {
	case StatusPaymentPending:
		a.AcceptedAt = &at
	case StatusConfirmed:
		if a.AcceptedAt == nil {
			a.AcceptedAt = &at
		}
		a.ConfirmedAt = &at
	case StatusCancelled:
		a.CancelledAt = &at
	case StatusCompleted:
		a.CompletedAt = &at
	}
	return nil
}

// Accept moves an awaiting appointment to payment_pending, or straight to
// confirmed when there is nothing to pay.
func (a *Appointment) Accept(at time.Time) error {
	if err := a.TransitionTo(StatusPaymentPending, at); err != nil {
		return err
	}
	if a.Fee == 0 {
		return a.TransitionTo(StatusConfirmed, at)
	}
	return nil
}

func (a *Appointment) Reject(reason string, at time.Time) error {
	if err := a.TransitionTo(StatusRejected, at); err != nil {
		return err
	}
	a.RejectionReason = reason
	return nil
}

func (a *Appointment) Cancel(reason string, by uuid.UUID, at time.Time) error {
	if err := a.TransitionTo(StatusCancelled, at); err != nil {
		return err
	}
	a.CancellationReason = reason
	a.CancelledBy = &by
	return nil
}

func (a *Appointment) IsOnline() bool {
	return a.Mode == doctor.ModeOnline
}

func (a *Appointment) HasMeeting() bool {
	return a.MeetingID != ""
}

// NeedsMeeting reports whether a confirmed online appointment still lacks a
// provider meeting.
func (a *Appointment) NeedsMeeting() bool {
	return a.Status == StatusConfirmed && a.IsOnline() && !a.HasMeeting()
}

func (a *Appointment) ClearMeeting() {
	a.MeetingID = ""
	a.MeetingJoinURL = ""
	a.MeetingHostURL = ""
	a.MeetingPasscode = ""
}

type BookCommand struct {
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	ScheduledAt  time.Time
	DurationMins int
	Mode         doctor.ConsultationMode
	Reason       string
	CreatedBy    uuid.UUID
}

type ListAppointmentsQuery struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *Status
	Mode      *doctor.ConsultationMode
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

type PagedAppointments struct {
	Appointments []*Appointment
	TotalCount   int64
	Page         int
	PageSize     int
	TotalPages   int
}
