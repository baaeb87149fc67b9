package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/meeting"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/payment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/events"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AppointmentService struct {
	repo      appointment.Repository
	doctors   doctor.Repository
	payments  payment.Repository
	processor PaymentProcessor
	meetings  MeetingProvider
	publisher events.Publisher
	auditSvc  *AuditService
	metrics   *metrics.Collector
	log       *zap.Logger
	now       func() time.Time
}

func NewAppointmentService(
	repo appointment.Repository,
	doctors doctor.Repository,
	payments payment.Repository,
	processor PaymentProcessor,
	meetings MeetingProvider,
	publisher events.Publisher,
	auditSvc *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
) *AppointmentService {
	return &AppointmentService{
		repo:      repo,
		doctors:   doctors,
		payments:  payments,
		processor: processor,
		meetings:  meetings,
		publisher: publisher,
		auditSvc:  auditSvc,
		metrics:   m,
		log:       log,
		now:       time.Now,
	}
}

// MeetingLink is the consultation URL for one participant.
type MeetingLink struct {
	URL         string    `json:"url"`
	Passcode    string    `json:"passcode,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
	EndsAt      time.Time `json:"ends_at"`
}

func (s *AppointmentService) Book(ctx context.Context, actor domain.Actor, cmd *appointment.BookCommand) (*appointment.Appointment, error) {
	if !actor.IsPatient() {
		return nil, ErrForbidden
	}
	cmd.PatientID = *actor.PatientID
	cmd.CreatedBy = actor.UserID

	// -------- Input Validation -----------
	if !cmd.ScheduledAt.After(s.now()) {
		return nil, appointment.ErrScheduledInPast
	}
	if cmd.DurationMins < appointment.MinDurationMins || cmd.DurationMins > appointment.MaxDurationMins {
		return nil, appointment.ErrInvalidDuration
	}
	if !cmd.Mode.IsValid() {
		return nil, appointment.ErrInvalidMode
	}

	d, err := s.doctors.GetByID(ctx, cmd.DoctorID)
	if err != nil {
		return nil, err
	}
	if !d.IsVerified {
		return nil, doctor.ErrDoctorNotVerified
	}
	if !d.Offers(cmd.Mode) {
		return nil, doctor.ErrModeNotOffered
	}
	duration := time.Duration(cmd.DurationMins) * time.Minute
	if !d.IsAvailable(cmd.ScheduledAt, duration) {
		return nil, doctor.ErrOutsideAvailability
	}

	endsAt := cmd.ScheduledAt.Add(duration)
	conflict, err := s.repo.HasDoctorConflict(ctx, d.ID, cmd.ScheduledAt, endsAt, nil)
	if err != nil {
		return nil, fmt.Errorf("checking doctor conflicts: %w", err)
	}
	if !conflict {
		conflict, err = s.repo.HasPatientConflict(ctx, cmd.PatientID, cmd.ScheduledAt, endsAt, nil)
		if err != nil {
			return nil, fmt.Errorf("checking patient conflicts: %w", err)
		}
	}
	if conflict {
		return nil, appointment.ErrAppointmentConflict
	}

	a := &appointment.Appointment{
		PatientID:    cmd.PatientID,
		DoctorID:     d.ID,
		ScheduledAt:  cmd.ScheduledAt.UTC(),
		DurationMins: cmd.DurationMins,
		Mode:         cmd.Mode,
		Status:       appointment.StatusAwaitingAcceptance,
		Reason:       strings.TrimSpace(cmd.Reason),
		Fee:          d.ConsultationFee,
		Currency:     d.Currency,
		CreatedBy:    cmd.CreatedBy,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		s.log.Error("failed to create appointment", zap.Error(err))
		return nil, fmt.Errorf("creating appointment: %w", err)
	}

	s.changed(ctx, actor, a)
	return a, nil
}

// load fetches an appointment the actor takes part in. Admins see every one.
func (s *AppointmentService) load(ctx context.Context, actor domain.Actor, id uuid.UUID) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || actor.OwnsPatient(a.PatientID) || actor.IsDoctorOf(a.DoctorID) {
		return a, nil
	}
	return nil, ErrForbidden
}

func (s *AppointmentService) GetAppointment(ctx context.Context, actor domain.Actor, id uuid.UUID) (*appointment.Appointment, error) {
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	s.auditSvc.LogAsync(ctx, auditFor(actor, domain.ActionRead, "appointment", id.String()))
	return a, nil
}

func (s *AppointmentService) ListAppointments(ctx context.Context, actor domain.Actor, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	switch {
	case actor.IsAdmin():
	case actor.IsPatient():
		q.PatientID = actor.PatientID
	case actor.IsDoctor():
		q.DoctorID = actor.DoctorID
	default:
		return nil, ErrForbidden
	}
	if q.Status != nil && !q.Status.IsValid() {
		return nil, &ValidationError{Fields: []string{"status is invalid"}}
	}
	if q.Mode != nil && !q.Mode.IsValid() {
		return nil, appointment.ErrInvalidMode
	}
	if q.DateFrom != nil && q.DateTo != nil && q.DateTo.Before(*q.DateFrom) {
		return nil, &ValidationError{Fields: []string{"date_to cannot be before date_from"}}
	}
	q.Page, q.PageSize = normalizePage(q.Page, q.PageSize)
	return s.repo.List(ctx, q)
}

// Accept is the doctor's acceptance. Paid appointments wait for payment; free
// ones are confirmed immediately.
func (s *AppointmentService) Accept(ctx context.Context, actor domain.Actor, id uuid.UUID) (*appointment.Appointment, error) {
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsDoctorOf(a.DoctorID) {
		return nil, ErrForbidden
	}

	from := a.Status
	if err := a.Accept(s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatusIf(ctx, a, from); err != nil {
		return nil, err
	}

	s.changed(ctx, actor, a)
	s.afterConfirm(ctx, a)
	return a, nil
}

func (s *AppointmentService) Reject(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*appointment.Appointment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, appointment.ErrReasonRequired
	}
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsDoctorOf(a.DoctorID) {
		return nil, ErrForbidden
	}

	from := a.Status
	if err := a.Reject(reason, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatusIf(ctx, a, from); err != nil {
		return nil, err
	}

	s.changed(ctx, actor, a)
	return a, nil
}

// Cancel cancels on behalf of a participant or an admin. A captured payment
// is refunded and a scheduled meeting is deleted; failures of either are
// logged without undoing the cancellation.
func (s *AppointmentService) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*appointment.Appointment, error) {
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	from := a.Status
	if err := a.Cancel(strings.TrimSpace(reason), actor.UserID, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatusIf(ctx, a, from); err != nil {
		return nil, err
	}

	s.changed(ctx, actor, a)

	if from == appointment.StatusPaymentPending || from == appointment.StatusConfirmed {
		if err := s.refundFor(ctx, a.ID); err != nil {
			s.log.Error("refund after cancellation failed",
				zap.String("appointment_id", a.ID.String()),
				zap.Error(err),
			)
		}
	}

	// A meeting may have been stored between load and the status update.
	if cur, err := s.repo.GetByID(ctx, a.ID); err == nil {
		a.MeetingID, a.MeetingJoinURL = cur.MeetingID, cur.MeetingJoinURL
		a.MeetingHostURL, a.MeetingPasscode = cur.MeetingHostURL, cur.MeetingPasscode
	}

	if a.HasMeeting() {
		if err := s.meetings.DeleteMeeting(ctx, a.MeetingID); err != nil {
			s.log.Error("deleting meeting after cancellation failed",
				zap.String("appointment_id", a.ID.String()),
				zap.String("meeting_id", a.MeetingID),
				zap.Error(err),
			)
		} else {
			if err := s.repo.ClearMeeting(ctx, a.ID, a.MeetingID); err != nil {
				s.log.Error("clearing meeting fields", zap.Error(err))
			}
			a.ClearMeeting()
		}
	}
	return a, nil
}

func (s *AppointmentService) Complete(ctx context.Context, actor domain.Actor, id uuid.UUID) (*appointment.Appointment, error) {
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsDoctorOf(a.DoctorID) && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return a, s.complete(ctx, actor, a)
}

func (s *AppointmentService) complete(ctx context.Context, actor domain.Actor, a *appointment.Appointment) error {
	from := a.Status
	if err := a.TransitionTo(appointment.StatusCompleted, s.now()); err != nil {
		return err
	}
	if err := s.repo.UpdateStatusIf(ctx, a, from); err != nil {
		return err
	}
	s.changed(ctx, actor, a)
	return nil
}

// ConfirmPaid confirms an appointment whose payment succeeded. An
// appointment that is already confirmed or completed is returned as is, so
// a redelivered payment event is harmless.
func (s *AppointmentService) ConfirmPaid(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch a.Status {
	case appointment.StatusConfirmed:
		s.afterConfirm(ctx, a)
		return a, nil
	case appointment.StatusCompleted:
		return a, nil
	}
	from := a.Status
	if err := a.TransitionTo(appointment.StatusConfirmed, s.now()); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatusIf(ctx, a, from); err != nil {
		return nil, err
	}

	s.changed(ctx, systemActor, a)
	s.afterConfirm(ctx, a)
	return a, nil
}

// HandleMeetingEvent applies a provider notification. A meeting that ended
// completes its confirmed appointment.
func (s *AppointmentService) HandleMeetingEvent(ctx context.Context, ev *meeting.Event) error {
	log := s.log.With(zap.String("event", ev.Type), zap.String("meeting_id", ev.MeetingID))

	switch ev.Type {
	case meeting.EventMeetingStarted:
		log.Info("consultation started")
		return nil
	case meeting.EventMeetingEnded:
	default:
		log.Debug("ignoring meeting event")
		return nil
	}

	a, err := s.repo.GetByMeetingID(ctx, ev.MeetingID)
	if errors.Is(err, appointment.ErrAppointmentNotFound) {
		log.Warn("meeting ended for unknown appointment")
		return nil
	}
	if err != nil {
		return err
	}
	if a.Status != appointment.StatusConfirmed {
		log.Info("meeting ended, appointment not confirmed", zap.String("status", string(a.Status)))
		return nil
	}

	err = s.complete(ctx, systemActor, a)
	if errors.Is(err, appointment.ErrInvalidStatusTransition) {
		return nil
	}
	return err
}

// afterConfirm creates the meeting of a newly confirmed online appointment.
// A failure is retried by EnsureMeeting when a participant asks for the link.
func (s *AppointmentService) afterConfirm(ctx context.Context, a *appointment.Appointment) {
	if !a.NeedsMeeting() {
		return
	}
	if err := s.EnsureMeeting(ctx, a); err != nil {
		s.log.Warn("creating meeting failed, will retry on demand",
			zap.String("appointment_id", a.ID.String()),
			zap.Error(err),
		)
	}
}

// EnsureMeeting creates the provider meeting when a confirmed online
// appointment does not have one yet.
func (s *AppointmentService) EnsureMeeting(ctx context.Context, a *appointment.Appointment) error {
	if !a.NeedsMeeting() {
		return nil
	}

	m, err := s.meetings.CreateMeeting(ctx, meeting.CreateRequest{
		Topic:        "Telecare consultation",
		StartTime:    a.ScheduledAt,
		DurationMins: a.DurationMins,
	})
	if err != nil {
		return err
	}

	a.MeetingID = m.ID
	a.MeetingJoinURL = m.JoinURL
	a.MeetingHostURL = m.HostURL
	a.MeetingPasscode = m.Passcode
	stored, err := s.repo.SetMeeting(ctx, a)
	if err != nil || !stored {
		return s.discardMeeting(ctx, a, m.ID, err)
	}
	s.log.Info("meeting scheduled",
		zap.String("appointment_id", a.ID.String()),
		zap.String("meeting_id", m.ID),
	)
	return nil
}

// discardMeeting handles a meeting SetMeeting did not store. a is reloaded,
// and the provider meeting is deleted unless the reload shows it stored.
func (s *AppointmentService) discardMeeting(ctx context.Context, a *appointment.Appointment, meetingID string, storeErr error) error {
	log := s.log.With(zap.String("appointment_id", a.ID.String()), zap.String("meeting_id", meetingID))

	cur, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		a.ClearMeeting()
		if storeErr != nil {
			return storeErr
		}
		return err
	}
	*a = *cur
	if a.MeetingID == meetingID {
		return nil
	}

	if err := s.meetings.DeleteMeeting(ctx, meetingID); err != nil {
		log.Error("deleting unused meeting failed", zap.Error(err))
	} else {
		log.Info("unused meeting deleted", zap.String("status", string(a.Status)))
	}

	switch {
	case storeErr != nil:
		return storeErr
	case a.Status == appointment.StatusConfirmed && a.HasMeeting():
		return nil
	default:
		return appointment.ErrMeetingUnavailable
	}
}

// GetMeetingLink returns the join URL to the patient and the host URL to the
// doctor of a confirmed online appointment.
func (s *AppointmentService) GetMeetingLink(ctx context.Context, actor domain.Actor, id uuid.UUID) (*MeetingLink, error) {
	a, err := s.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !a.IsOnline() {
		return nil, appointment.ErrNotOnline
	}
	if a.Status != appointment.StatusConfirmed {
		return nil, appointment.ErrMeetingUnavailable
	}
	if err := s.EnsureMeeting(ctx, a); err != nil {
		s.log.Warn("meeting still unavailable", zap.String("appointment_id", a.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", appointment.ErrMeetingUnavailable, err)
	}

	link := &MeetingLink{Passcode: a.MeetingPasscode, ScheduledAt: a.ScheduledAt, EndsAt: a.EndsAt()}
	switch {
	case actor.OwnsPatient(a.PatientID):
		link.URL = a.MeetingJoinURL
	case actor.IsDoctorOf(a.DoctorID):
		link.URL = a.MeetingHostURL
	default:
		return nil, ErrForbidden
	}

	s.auditSvc.LogAsync(ctx, auditFor(actor, domain.ActionRead, "meeting_link", a.ID.String()))
	return link, nil
}

// SendReminders publishes one reminder per confirmed appointment starting
// within lead. Returns how many were sent.
func (s *AppointmentService) SendReminders(ctx context.Context, lead time.Duration) (int, error) {
	now := s.now()
	due, err := s.repo.DueForReminder(ctx, now, lead)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, a := range due {
		// Another worker may have claimed it first.
		claimed, err := s.repo.MarkReminded(ctx, a.ID, now)
		if err != nil {
			s.log.Error("marking reminder", zap.String("appointment_id", a.ID.String()), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		s.publish(ctx, events.TypeAppointmentReminder, a)
		sent++
	}
	return sent, nil
}

// refundFor refunds the captured payment of an appointment, if any.
func (s *AppointmentService) refundFor(ctx context.Context, appointmentID uuid.UUID) error {
	p, err := s.payments.LatestForAppointment(ctx, appointmentID)
	if errors.Is(err, payment.ErrPaymentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.Status != payment.StatusSucceeded {
		return nil
	}
	return s.refund(ctx, p)
}

func (s *AppointmentService) refund(ctx context.Context, p *payment.Payment) error {
	if p.Status != payment.StatusSucceeded {
		return payment.ErrRefundNotPossible
	}
	refundID, err := s.processor.Refund(ctx, p.ProviderPaymentID)
	if err != nil {
		s.metrics.PaymentsTotal.WithLabelValues("refund_failed").Inc()
		return err
	}
	p.MarkRefunded(refundID, s.now())
	if err := s.payments.Save(ctx, p); err != nil {
		return fmt.Errorf("saving refund: %w", err)
	}
	s.metrics.PaymentsTotal.WithLabelValues(string(payment.StatusRefunded)).Inc()
	s.log.Info("payment refunded",
		zap.String("payment_id", p.ID.String()),
		zap.String("appointment_id", p.AppointmentID.String()),
	)
	return nil
}

// systemActor attributes webhook and worker driven changes.
var systemActor = domain.Actor{Role: domain.RoleAdmin, RequestID: "system"}

// changed records a state change: metric, audit entry and domain event.
func (s *AppointmentService) changed(ctx context.Context, actor domain.Actor, a *appointment.Appointment) {
	s.metrics.AppointmentsTotal.WithLabelValues(string(a.Status)).Inc()

	entry := auditFor(actor, domain.ActionUpdate, "appointment", a.ID.String())
	if a.Status == appointment.StatusAwaitingAcceptance {
		entry.Action = domain.ActionCreate
	}
	entry.Changes = fmt.Sprintf(`{"status":%q}`, a.Status)
	s.auditSvc.LogAsync(ctx, entry)

	s.publish(ctx, events.AppointmentType(string(a.Status)), a)
}

func (s *AppointmentService) publish(ctx context.Context, eventType string, a *appointment.Appointment) {
	reason := a.CancellationReason
	if a.Status == appointment.StatusRejected {
		reason = a.RejectionReason
	}
	err := s.publisher.Publish(ctx, events.Event{
		Type:    eventType,
		Subject: a.ID.String(),
		Data: events.AppointmentData{
			AppointmentID: a.ID,
			PatientID:     a.PatientID,
			DoctorID:      a.DoctorID,
			Status:        string(a.Status),
			Mode:          string(a.Mode),
			ScheduledAt:   a.ScheduledAt,
			Reason:        reason,
		},
	})
	if err != nil {
		s.log.Error("publishing appointment event",
			zap.String("type", eventType),
			zap.String("appointment_id", a.ID.String()),
			zap.Error(err),
		)
	}
}
