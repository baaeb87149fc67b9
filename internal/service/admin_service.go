package service

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/payment"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type AdminService struct {
	users        UserRepository
	doctors      doctor.Repository
	appointments appointment.Repository
	payments     payment.Repository
	auditSvc     *AuditService
	log          *zap.Logger
}

func NewAdminService(
	users UserRepository,
	doctors doctor.Repository,
	appointments appointment.Repository,
	payments payment.Repository,
	auditSvc *AuditService,
	log *zap.Logger,
) *AdminService {
	return &AdminService{
		users:        users,
		doctors:      doctors,
		appointments: appointments,
		payments:     payments,
		auditSvc:     auditSvc,
		log:          log,
	}
}

// Stats is the platform overview shown on the admin dashboard.
type Stats struct {
	UsersByRole          map[domain.Role]int64        `json:"users_by_role"`
	VerifiedDoctors      int64                        `json:"verified_doctors"`
	PendingDoctors       int64                        `json:"pending_doctors"`
	AppointmentsByStatus map[appointment.Status]int64 `json:"appointments_by_status"`
	// Revenue of succeeded payments in minor units, per currency.
	Revenue map[string]int64 `json:"revenue"`
}

func (s *AdminService) ListUsers(ctx context.Context, actor domain.Actor, q *domain.ListUsersQuery) (*domain.PagedUsers, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if q.Role != nil && !q.Role.IsValid() {
		return nil, &ValidationError{Fields: []string{"role is invalid"}}
	}
	q.Page, q.PageSize = normalizePage(q.Page, q.PageSize)
	return s.users.List(ctx, q)
}

// SetUserActive activates or deactivates an account. Admins cannot
// deactivate themselves.
func (s *AdminService) SetUserActive(ctx context.Context, actor domain.Actor, id uuid.UUID, active bool) (*domain.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if id == actor.UserID && !active {
		return nil, &ValidationError{Fields: []string{"cannot deactivate your own account"}}
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsActive == active {
		return u, nil
	}
	u.IsActive = active
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}

	entry := auditFor(actor, domain.ActionUpdate, "user", u.ID.String())
	entry.Changes = fmt.Sprintf(`{"is_active":%t}`, active)
	s.auditSvc.LogAsync(ctx, entry)
	s.log.Info("user activation changed",
		zap.String("user_id", u.ID.String()),
		zap.Bool("active", active),
		zap.String("admin_id", actor.UserID.String()),
	)
	return u, nil
}

// Stats runs the aggregate queries concurrently.
func (s *AdminService) Stats(ctx context.Context, actor domain.Actor) (*Stats, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	out := &Stats{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.UsersByRole, err = s.users.CountByRole(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.VerifiedDoctors, out.PendingDoctors, err = s.doctors.CountVerified(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.AppointmentsByStatus, err = s.appointments.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Revenue, err = s.payments.Revenue(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collecting stats: %w", err)
	}
	return out, nil
}
