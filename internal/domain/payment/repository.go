package payment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	Save(ctx context.Context, p *Payment) error
	GetByProviderID(ctx context.Context, providerPaymentID string) (*Payment, error)

	// LatestForAppointment returns the most recent payment of an appointment.
	LatestForAppointment(ctx context.Context, appointmentID uuid.UUID) (*Payment, error)

	// RecordEvent stores a webhook event id. Returns ErrDuplicateEvent when it
	// was already recorded.
	RecordEvent(ctx context.Context, e *WebhookEvent) error

	// ForgetEvent removes a recorded event so a redelivery is processed again.
	ForgetEvent(ctx context.Context, eventID string) error

	// Revenue sums succeeded payments per currency.
	Revenue(ctx context.Context) (map[string]int64, error)
}
