package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/review"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/events"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReviewService struct {
	repo         review.Repository
	appointments appointment.Repository
	doctors      doctor.Repository
	publisher    events.Publisher
	auditSvc     *AuditService
	metrics      *metrics.Collector
	log          *zap.Logger
}

func NewReviewService(
	repo review.Repository,
	appointments appointment.Repository,
	doctors doctor.Repository,
	publisher events.Publisher,
	auditSvc *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
) *ReviewService {
	return &ReviewService{
		repo:         repo,
		appointments: appointments,
		doctors:      doctors,
		publisher:    publisher,
		auditSvc:     auditSvc,
		metrics:      m,
		log:          log,
	}
}

type CreateReviewCommand struct {
	AppointmentID uuid.UUID
	Rating        int
	Comment       string
}

// Create reviews one of the patient's completed appointments.
func (s *ReviewService) Create(ctx context.Context, actor domain.Actor, cmd *CreateReviewCommand) (*review.Review, error) {
	if !actor.IsPatient() {
		return nil, ErrForbidden
	}

	a, err := s.appointments.GetByID(ctx, cmd.AppointmentID)
	if err != nil {
		return nil, err
	}
	if !actor.OwnsPatient(a.PatientID) {
		return nil, ErrForbidden
	}
	if a.Status != appointment.StatusCompleted {
		return nil, review.ErrNotReviewable
	}

	r := &review.Review{
		AppointmentID: a.ID,
		DoctorID:      a.DoctorID,
		PatientID:     a.PatientID,
		Rating:        cmd.Rating,
		Comment:       strings.TrimSpace(cmd.Comment),
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	agg, err := s.repo.CreateAndAggregate(ctx, r)
	if err != nil {
		return nil, err
	}

	s.metrics.ReviewsTotal.Inc()
	s.auditSvc.LogAsync(ctx, auditFor(actor, domain.ActionCreate, "review", r.ID.String()))
	s.log.Info("review created",
		zap.String("review_id", r.ID.String()),
		zap.String("doctor_id", r.DoctorID.String()),
		zap.Float64("rating_average", agg.Average),
		zap.Int("rating_count", agg.Count),
	)

	err = s.publisher.Publish(ctx, events.Event{
		Type:    events.TypeReviewReceived,
		Subject: r.ID.String(),
		Data: events.ReviewData{
			ReviewID:      r.ID,
			AppointmentID: r.AppointmentID,
			DoctorID:      r.DoctorID,
			PatientID:     r.PatientID,
			Rating:        r.Rating,
		},
	})
	if err != nil {
		s.log.Error("publishing review event", zap.Error(err))
	}
	return r, nil
}

// ListForDoctor is public; unverified doctors have no visible reviews.
func (s *ReviewService) ListForDoctor(ctx context.Context, q *review.ListQuery) (*review.PagedReviews, error) {
	d, err := s.doctors.GetByID(ctx, q.DoctorID)
	if err != nil {
		return nil, err
	}
	if !d.IsVerified {
		return nil, doctor.ErrDoctorNotFound
	}
	q.Page, q.PageSize = normalizePage(q.Page, q.PageSize)
	return s.repo.ListForDoctor(ctx, q)
}

// Delete removes a review and recomputes the doctor's rating. Admin only.
func (s *ReviewService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	agg, err := s.repo.DeleteAndAggregate(ctx, r)
	if err != nil {
		return err
	}

	entry := auditFor(actor, domain.ActionDelete, "review", r.ID.String())
	entry.Changes = fmt.Sprintf(`{"doctor_id":%q,"rating":%d}`, r.DoctorID, r.Rating)
	s.auditSvc.LogAsync(ctx, entry)
	s.log.Info("review deleted",
		zap.String("review_id", r.ID.String()),
		zap.Float64("rating_average", agg.Average),
		zap.Int("rating_count", agg.Count),
	)
	return nil
}
