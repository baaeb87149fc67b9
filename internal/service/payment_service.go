package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/payment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/events"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PaymentService struct {
	repo         payment.Repository
	appointments appointment.Repository
	appts        *AppointmentService
	processor    PaymentProcessor
	publisher    events.Publisher
	auditSvc     *AuditService
	metrics      *metrics.Collector
	log          *zap.Logger
	now          func() time.Time
}

func NewPaymentService(
	repo payment.Repository,
	appointments appointment.Repository,
	appts *AppointmentService,
	processor PaymentProcessor,
	publisher events.Publisher,
	auditSvc *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
) *PaymentService {
	return &PaymentService{
		repo:         repo,
		appointments: appointments,
		appts:        appts,
		processor:    processor,
		publisher:    publisher,
		auditSvc:     auditSvc,
		metrics:      m,
		log:          log,
		now:          time.Now,
	}
}

// CreatePayment starts or resumes the payment of an appointment awaiting
// payment. The returned client secret lets the patient's client confirm the
// card payment with the processor directly.
func (s *PaymentService) CreatePayment(ctx context.Context, actor domain.Actor, appointmentID uuid.UUID) (*payment.Payment, error) {
	a, err := s.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if !actor.OwnsPatient(a.PatientID) {
		return nil, ErrForbidden
	}
	if a.Status != appointment.StatusPaymentPending {
		if a.Status == appointment.StatusConfirmed || a.Status == appointment.StatusCompleted {
			return nil, payment.ErrAlreadyPaid
		}
		return nil, payment.ErrNotPayable
	}

	existing, err := s.repo.LatestForAppointment(ctx, a.ID)
	switch {
	case err == nil:
		switch existing.Status {
		case payment.StatusPending:
			return existing, nil
		case payment.StatusSucceeded:
			return nil, payment.ErrAlreadyPaid
		case payment.StatusFailed:
			// The processor keeps a failed intent open for another card.
			existing.Status = payment.StatusPending
			existing.FailureReason = ""
			if err := s.repo.Save(ctx, existing); err != nil {
				return nil, err
			}
			return existing, nil
		}
	case !errors.Is(err, payment.ErrPaymentNotFound):
		return nil, err
	}

	intent, err := s.processor.CreateIntent(ctx, a.ID, a.Fee, a.Currency)
	if err != nil {
		s.metrics.PaymentsTotal.WithLabelValues("intent_failed").Inc()
		return nil, err
	}

	p := &payment.Payment{
		AppointmentID:     a.ID,
		PatientID:         a.PatientID,
		Amount:            a.Fee,
		Currency:          a.Currency,
		Status:            payment.StatusPending,
		ProviderPaymentID: intent.ID,
		ClientSecret:      intent.ClientSecret,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		// The idempotency key returns the same intent on a retried request,
		// so a concurrent create may have stored it already.
		if stored, lookupErr := s.repo.GetByProviderID(ctx, intent.ID); lookupErr == nil {
			return stored, nil
		}
		return nil, fmt.Errorf("creating payment: %w", err)
	}

	s.metrics.PaymentsTotal.WithLabelValues(string(payment.StatusPending)).Inc()
	entry := auditFor(actor, domain.ActionCreate, "payment", p.ID.String())
	entry.Changes = fmt.Sprintf(`{"appointment_id":%q,"amount":%d,"currency":%q}`, a.ID, p.Amount, p.Currency)
	s.auditSvc.LogAsync(ctx, entry)
	return p, nil
}

// GetForAppointment returns the latest payment of an appointment the actor
// takes part in.
func (s *PaymentService) GetForAppointment(ctx context.Context, actor domain.Actor, appointmentID uuid.UUID) (*payment.Payment, error) {
	if _, err := s.appts.load(ctx, actor, appointmentID); err != nil {
		return nil, err
	}
	return s.repo.LatestForAppointment(ctx, appointmentID)
}

// HandleWebhook verifies and applies one processor event. Each event id is
// applied at most once; a redelivered event is acknowledged without effect.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.processor.ParseWebhook(payload, signature, s.now())
	if err != nil {
		return err
	}
	log := s.log.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))

	err = s.repo.RecordEvent(ctx, &payment.WebhookEvent{EventID: ev.ID, Type: ev.Type, Payload: string(ev.Raw)})
	if errors.Is(err, payment.ErrDuplicateEvent) {
		log.Info("duplicate payment webhook ignored")
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.apply(ctx, ev, log); err != nil {
		if forgetErr := s.repo.ForgetEvent(ctx, ev.ID); forgetErr != nil {
			log.Error("releasing webhook event", zap.Error(forgetErr))
		}
		return err
	}
	return nil
}

func (s *PaymentService) apply(ctx context.Context, ev *payment.Event, log *zap.Logger) error {
	switch ev.Type {
	case payment.EventPaymentSucceeded, payment.EventPaymentFailed, payment.EventChargeRefunded:
	default:
		log.Debug("ignoring payment event")
		return nil
	}

	p, err := s.repo.GetByProviderID(ctx, ev.PaymentIntentID)
	if errors.Is(err, payment.ErrPaymentNotFound) {
		log.Warn("webhook for unknown payment", zap.String("payment_intent", ev.PaymentIntentID))
		return nil
	}
	if err != nil {
		return err
	}
	log = log.With(zap.String("payment_id", p.ID.String()), zap.String("appointment_id", p.AppointmentID.String()))

	switch ev.Type {
	case payment.EventPaymentSucceeded:
		return s.succeeded(ctx, p, log)

	case payment.EventPaymentFailed:
		if p.Status != payment.StatusPending {
			return nil
		}
		p.MarkFailed(ev.FailureMessage)
		if err := s.repo.Save(ctx, p); err != nil {
			return err
		}
		s.metrics.PaymentsTotal.WithLabelValues(string(payment.StatusFailed)).Inc()
		log.Info("payment failed", zap.String("reason", ev.FailureMessage))
		s.publishFailed(ctx, p)
		return nil

	default:
		if p.Status != payment.StatusSucceeded {
			log.Info("ignoring refund for uncaptured payment", zap.String("status", string(p.Status)))
			return nil
		}
		p.MarkRefunded(p.RefundID, s.now())
		if err := s.repo.Save(ctx, p); err != nil {
			return err
		}
		s.metrics.PaymentsTotal.WithLabelValues(string(payment.StatusRefunded)).Inc()
		log.Info("payment refunded by processor")
		return nil
	}
}

// succeeded confirms the appointment. Money captured for an appointment that
// can no longer be confirmed, e.g. cancelled meanwhile, is refunded. A
// payment already marked succeeded still confirms its appointment, so a
// retried event finishes what a failed attempt started.
func (s *PaymentService) succeeded(ctx context.Context, p *payment.Payment, log *zap.Logger) error {
	if p.Status == payment.StatusRefunded {
		return nil
	}
	if p.Status != payment.StatusSucceeded {
		p.MarkSucceeded(s.now())
		if err := s.repo.Save(ctx, p); err != nil {
			return err
		}
		s.metrics.PaymentsTotal.WithLabelValues(string(payment.StatusSucceeded)).Inc()
	}

	_, err := s.appts.ConfirmPaid(ctx, p.AppointmentID)
	if errors.Is(err, appointment.ErrInvalidStatusTransition) {
		log.Warn("payment captured for appointment that cannot be confirmed, refunding")
		if refundErr := s.appts.refund(ctx, p); refundErr != nil {
			log.Error("refunding orphaned payment", zap.Error(refundErr))
		}
		return nil
	}
	if err != nil {
		return err
	}
	log.Info("payment succeeded, appointment confirmed")
	return nil
}

func (s *PaymentService) publishFailed(ctx context.Context, p *payment.Payment) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:    events.TypePaymentFailed,
		Subject: p.AppointmentID.String(),
		Data: events.PaymentData{
			PaymentID:     p.ID,
			AppointmentID: p.AppointmentID,
			PatientID:     p.PatientID,
			Amount:        p.Amount,
			Currency:      p.Currency,
			Reason:        p.FailureReason,
		},
	})
	if err != nil {
		s.log.Error("publishing payment event", zap.Error(err))
	}
}
