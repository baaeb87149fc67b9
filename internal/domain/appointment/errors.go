package appointment

import "errors"

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrAppointmentConflict     = errors.New("appointment time slot is already booked")
	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")
	ErrScheduledInPast         = errors.New("cannot schedule appointment in the past")
	ErrInvalidDuration         = errors.New("appointment duration must be between 10 and 240 minutes")
	ErrInvalidMode             = errors.New("invalid consultation mode")
	ErrNotOnline               = errors.New("appointment is not an online consultation")
	ErrMeetingUnavailable      = errors.New("meeting is not available for this appointment")
	ErrReasonRequired          = errors.New("a reason is required")
)
