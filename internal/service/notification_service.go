package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ce "github.com/cloudevents/sdk-go/v2"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/events"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider/email"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationService turns domain events into notifications and serves the
// user's in-app inbox.
type NotificationService struct {
	repo    notification.Repository
	users   UserRepository
	mail    EmailSender
	sms     SMSSender
	metrics *metrics.Collector
	log     *zap.Logger
	now     func() time.Time
}

func NewNotificationService(
	repo notification.Repository,
	users UserRepository,
	mail EmailSender,
	sms SMSSender,
	m *metrics.Collector,
	log *zap.Logger,
) *NotificationService {
	return &NotificationService{
		repo:    repo,
		users:   users,
		mail:    mail,
		sms:     sms,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// message is one notification addressed to one user.
type message struct {
	userID   uuid.UUID
	kind     string
	title    string
	body     string
	resource uuid.UUID
	// external also sends email and SMS when the user can receive them.
	external bool
}

type recipient int

const (
	toPatient recipient = iota
	toDoctor
)

// Handle implements events.Handler.
func (s *NotificationService) Handle(ctx context.Context, e ce.Event) error {
	kind := events.DomainType(e)
	log := s.log.With(zap.String("event_id", e.ID()), zap.String("kind", kind))

	msgs, err := s.messagesFor(ctx, kind, e)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		log.Debug("no notification for event")
		return nil
	}

	for _, m := range msgs {
		s.deliver(ctx, m, log)
	}
	return nil
}

func (s *NotificationService) messagesFor(ctx context.Context, kind string, e ce.Event) ([]message, error) {
	switch {
	case kind == events.TypePaymentFailed:
		var d events.PaymentData
		if err := e.DataAs(&d); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", kind, err)
		}
		body := fmt.Sprintf("Your payment of %s could not be processed.", money(d.Amount, d.Currency))
		if d.Reason != "" {
			body += " " + d.Reason
		}
		return s.address(ctx, []addressed{{toPatient, d.PatientID}}, message{
			kind: kind, title: "Payment failed", body: body, resource: d.AppointmentID,
		})

	case kind == events.TypeDocumentShared:
		var d events.DocumentData
		if err := e.DataAs(&d); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", kind, err)
		}
		return s.address(ctx, []addressed{{toPatient, d.PatientID}}, message{
			kind: kind, title: "New document", body: fmt.Sprintf("Your doctor shared %q with you.", d.Title), resource: d.DocumentID,
		})

	case kind == events.TypeReviewReceived:
		var d events.ReviewData
		if err := e.DataAs(&d); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", kind, err)
		}
		return s.address(ctx, []addressed{{toDoctor, d.DoctorID}}, message{
			kind: kind, title: "New review", body: fmt.Sprintf("A patient rated a consultation %d/5.", d.Rating), resource: d.ReviewID,
		})

	case strings.HasPrefix(kind, "appointment."):
		var d events.AppointmentData
		if err := e.DataAs(&d); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", kind, err)
		}
		return s.appointmentMessages(ctx, kind, d)
	}
	return nil, nil
}

func (s *NotificationService) appointmentMessages(ctx context.Context, kind string, d events.AppointmentData) ([]message, error) {
	when := d.ScheduledAt.UTC().Format("Mon 2 Jan 2006 15:04 MST")
	patient := addressed{toPatient, d.PatientID}
	doc := addressed{toDoctor, d.DoctorID}
	base := message{kind: kind, resource: d.AppointmentID}

	switch kind {
	case events.AppointmentType(string(appointment.StatusAwaitingAcceptance)):
		base.title = "New appointment request"
		base.body = fmt.Sprintf("A patient requested a %s consultation on %s.", modeLabel(d.Mode), when)
		return s.address(ctx, []addressed{doc}, base)

	case events.AppointmentType(string(appointment.StatusPaymentPending)):
		base.title = "Appointment accepted"
		base.body = fmt.Sprintf("Your appointment on %s was accepted. Complete the payment to confirm it.", when)
		return s.address(ctx, []addressed{patient}, base)

	case events.AppointmentType(string(appointment.StatusRejected)):
		base.title = "Appointment declined"
		base.body = fmt.Sprintf("Your appointment request for %s was declined.", when)
		if d.Reason != "" {
			base.body += " Reason: " + d.Reason
		}
		return s.address(ctx, []addressed{patient}, base)

	case events.AppointmentType(string(appointment.StatusConfirmed)):
		base.title = "Appointment confirmed"
		base.body = fmt.Sprintf("Your %s consultation on %s is confirmed.", modeLabel(d.Mode), when)
		base.external = true
		return s.address(ctx, []addressed{patient, doc}, base)

	case events.AppointmentType(string(appointment.StatusCancelled)):
		base.title = "Appointment cancelled"
		base.body = fmt.Sprintf("The appointment on %s was cancelled.", when)
		if d.Reason != "" {
			base.body += " Reason: " + d.Reason
		}
		base.external = true
		return s.address(ctx, []addressed{patient, doc}, base)

	case events.AppointmentType(string(appointment.StatusCompleted)):
		base.title = "Consultation completed"
		base.body = "Your consultation is complete. You can now leave a review."
		return s.address(ctx, []addressed{patient}, base)

	case events.TypeAppointmentReminder:
		base.title = "Upcoming appointment"
		base.body = fmt.Sprintf("Reminder: your %s consultation starts %s.", modeLabel(d.Mode), when)
		base.external = true
		return s.address(ctx, []addressed{patient, doc}, base)
	}
	return nil, nil
}

type addressed struct {
	who recipient
	id  uuid.UUID
}

// address resolves profile ids to user accounts. Profiles without an
// account are skipped.
func (s *NotificationService) address(ctx context.Context, to []addressed, tmpl message) ([]message, error) {
	out := make([]message, 0, len(to))
	for _, a := range to {
		var (
			u   *domain.User
			err error
		)
		if a.who == toDoctor {
			u, err = s.users.GetByDoctorID(ctx, a.id)
		} else {
			u, err = s.users.GetByPatientID(ctx, a.id)
		}
		if errors.Is(err, domain.ErrUserNotFound) {
			s.log.Warn("no account for notification recipient", zap.String("profile_id", a.id.String()))
			continue
		}
		if err != nil {
			return nil, err
		}
		m := tmpl
		m.userID = u.ID
		out = append(out, m)
	}
	return out, nil
}

// deliver always stores the in-app notification. Email and SMS failures are
// recorded on their own notification rows and never fail the event.
func (s *NotificationService) deliver(ctx context.Context, m message, log *zap.Logger) {
	s.send(ctx, m, notification.ChannelInApp, nil, log)
	if !m.external {
		return
	}

	u, err := s.users.GetByID(ctx, m.userID)
	if err != nil {
		log.Error("loading recipient", zap.String("user_id", m.userID.String()), zap.Error(err))
		return
	}

	if s.mail.Enabled() && u.Email != "" {
		s.send(ctx, m, notification.ChannelEmail, func(ctx context.Context) error {
			return s.mail.Send(ctx, email.Message{To: u.Email, Subject: m.title, Body: m.body})
		}, log)
	}
	if s.sms.Enabled() && u.Phone != "" {
		s.send(ctx, m, notification.ChannelSMS, func(ctx context.Context) error {
			return s.sms.Send(ctx, u.Phone, m.title+": "+m.body)
		}, log)
	}
}

func (s *NotificationService) send(ctx context.Context, m message, ch notification.Channel, dispatch func(context.Context) error, log *zap.Logger) {
	resource := m.resource
	n := &notification.Notification{
		UserID:     m.userID,
		Channel:    ch,
		Kind:       m.kind,
		Title:      m.title,
		Body:       m.body,
		ResourceID: &resource,
		Status:     notification.StatusPending,
	}
	if dispatch == nil {
		n.MarkSent(s.now())
	}
	if err := s.repo.Create(ctx, n); err != nil {
		log.Error("storing notification", zap.String("channel", string(ch)), zap.Error(err))
		return
	}
	if dispatch == nil {
		s.metrics.NotificationsTotal.WithLabelValues(string(ch), string(n.Status)).Inc()
		return
	}

	if err := dispatch(ctx); err != nil {
		n.MarkFailed(err)
		log.Warn("notification delivery failed", zap.String("channel", string(ch)), zap.Error(err))
	} else {
		n.MarkSent(s.now())
	}
	s.metrics.NotificationsTotal.WithLabelValues(string(ch), string(n.Status)).Inc()
	if err := s.repo.Save(ctx, n); err != nil {
		log.Error("updating notification", zap.String("channel", string(ch)), zap.Error(err))
	}
}

func modeLabel(mode string) string {
	if mode == "in_person" {
		return "in-person"
	}
	return mode
}

func money(amount int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", amount/100, amount%100, strings.ToUpper(currency))
}

func (s *NotificationService) List(ctx context.Context, actor domain.Actor, unreadOnly bool, page, pageSize int) (*notification.PagedNotifications, error) {
	page, pageSize = normalizePage(page, pageSize)
	return s.repo.List(ctx, &notification.ListQuery{
		UserID:     actor.UserID,
		UnreadOnly: unreadOnly,
		Page:       page,
		PageSize:   pageSize,
	})
}

func (s *NotificationService) MarkRead(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	return s.repo.MarkRead(ctx, actor.UserID, id, s.now())
}

func (s *NotificationService) MarkAllRead(ctx context.Context, actor domain.Actor) (int64, error) {
	return s.repo.MarkAllRead(ctx, actor.UserID, s.now())
}
