// Package events carries domain events between the API and the worker as
// CloudEvents, over Kafka or in process.
package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	ce "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

const (
	Source     = "telecare-api"
	typePrefix = "telecare."
)

const (
	TypeAppointmentReminder = "appointment.reminder"
	TypePaymentFailed       = "payment.failed"
	TypeDocumentShared      = "document.shared"
	TypeReviewReceived      = "review.received"
)

// AppointmentType names the event published when an appointment enters status.
func AppointmentType(status string) string {
	return "appointment." + status
}

// Event is a domain event before it is wrapped in an envelope.
type Event struct {
	Type    string
	Subject string
	Data    any
}

type AppointmentData struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Status        string    `json:"status"`
	Mode          string    `json:"mode"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Reason        string    `json:"reason,omitempty"`
}

type PaymentData struct {
	PaymentID     uuid.UUID `json:"payment_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Reason        string    `json:"reason,omitempty"`
}

type DocumentData struct {
	DocumentID uuid.UUID `json:"document_id"`
	PatientID  uuid.UUID `json:"patient_id"`
	UploadedBy uuid.UUID `json:"uploaded_by"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
}

type ReviewData struct {
	ReviewID      uuid.UUID `json:"review_id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	Rating        int       `json:"rating"`
}

// Publisher delivers domain events to whoever consumes them.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Handler consumes decoded envelopes.
type Handler interface {
	Handle(ctx context.Context, e ce.Event) error
}

type HandlerFunc func(ctx context.Context, e ce.Event) error

func (f HandlerFunc) Handle(ctx context.Context, e ce.Event) error {
	return f(ctx, e)
}

// Envelope wraps e in a CloudEvent.
func Envelope(e Event, at time.Time) (ce.Event, error) {
	if e.Type == "" {
		return ce.Event{}, fmt.Errorf("event type is required")
	}
	out := ce.NewEvent()
	out.SetID(uuid.NewString())
	out.SetSource(Source)
	out.SetType(typePrefix + e.Type)
	out.SetSubject(e.Subject)
	out.SetTime(at.UTC())
	if err := out.SetData(ce.ApplicationJSON, e.Data); err != nil {
		return ce.Event{}, fmt.Errorf("encoding %s data: %w", e.Type, err)
	}
	if err := out.Validate(); err != nil {
		return ce.Event{}, fmt.Errorf("invalid %s event: %w", e.Type, err)
	}
	return out, nil
}

// DomainType strips the CloudEvents type prefix.
func DomainType(e ce.Event) string {
	return strings.TrimPrefix(e.Type(), typePrefix)
}
