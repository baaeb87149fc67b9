package service

import (
	"context"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/meeting"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/payment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider/email"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/geo"
	"github.com/google/uuid"
)

// PaymentProcessor is the card processor as seen by the billing flow.
type PaymentProcessor interface {
	CreateIntent(ctx context.Context, appointmentID uuid.UUID, amount int64, currency string) (*payment.Intent, error)
	Refund(ctx context.Context, paymentIntentID string) (string, error)
	ParseWebhook(payload []byte, header string, now time.Time) (*payment.Event, error)
}

type MeetingProvider interface {
	CreateMeeting(ctx context.Context, req meeting.CreateRequest) (*meeting.Meeting, error)
	DeleteMeeting(ctx context.Context, meetingID string) error
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (geo.Point, error)
}

type EmailSender interface {
	Enabled() bool
	Send(ctx context.Context, msg email.Message) error
}

type SMSSender interface {
	Enabled() bool
	Send(ctx context.Context, to, body string) error
}
