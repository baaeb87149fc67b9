package payment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

type Payment struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	AppointmentID uuid.UUID `gorm:"column:appointment_id;type:uuid;not null;index" json:"appointment_id"`
	PatientID     uuid.UUID `gorm:"column:patient_id;type:uuid;not null;index" json:"patient_id"`

	// Amount in minor units of Currency.
	Amount   int64  `gorm:"column:amount;not null" json:"amount"`
	Currency string `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Status   Status `gorm:"column:status;type:varchar(20);not null;default:'pending';index" json:"status"`

	ProviderPaymentID string `gorm:"column:provider_payment_id;type:varchar(255);uniqueIndex" json:"provider_payment_id"`
	ClientSecret      string `gorm:"column:client_secret;type:varchar(255)" json:"client_secret,omitempty"`
	FailureReason     string `gorm:"column:failure_reason;type:text" json:"failure_reason,omitempty"`

	PaidAt     *time.Time `gorm:"column:paid_at" json:"paid_at,omitempty"`
	RefundedAt *time.Time `gorm:"column:refunded_at" json:"refunded_at,omitempty"`
	RefundID   string     `gorm:"column:refund_id;type:varchar(255)" json:"-"`
}

func (Payment) TableName() string {
	return "billing.payments"
}

func (p *Payment) MarkSucceeded(at time.Time) {
	p.Status = StatusSucceeded
	p.PaidAt = &at
	p.FailureReason = ""
}

func (p *Payment) MarkFailed(reason string) {
	p.Status = StatusFailed
	p.FailureReason = reason
}

func (p *Payment) MarkRefunded(refundID string, at time.Time) {
	p.Status = StatusRefunded
	p.RefundID = refundID
	p.RefundedAt = &at
}

// WebhookEvent records a processed processor event for idempotency.
type WebhookEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EventID     string    `gorm:"column:event_id;type:varchar(255);not null;uniqueIndex"`
	Type        string    `gorm:"column:type;type:varchar(100);not null"`
	Payload     string    `gorm:"column:payload;type:jsonb"`
	ProcessedAt time.Time `gorm:"column:processed_at;autoCreateTime"`
}

func (WebhookEvent) TableName() string {
	return "billing.webhook_events"
}

// Intent is the processor's view of a payment.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

// Event is a decoded processor webhook.
type Event struct {
	ID   string
	Type string
	// Object id of the payment intent the event refers to.
	PaymentIntentID string
	FailureMessage  string
	Raw             []byte
}

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded   = "charge.refunded"
)

// SignatureHeader carries the "t=<unix>,v1=<hex>" webhook signature.
const SignatureHeader = "Stripe-Signature"
