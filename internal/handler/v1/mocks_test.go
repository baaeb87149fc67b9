package v1

import (
	"context"
	"io"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/document"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/meeting"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/notification"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/payment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/review"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider/meetings"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/service"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// ret returns the first mocked value as T, or the zero value when nil.
func ret[T any](args mock.Arguments, i int) T {
	var zero T
	if v := args.Get(i); v != nil {
		return v.(T)
	}
	return zero
}

type mockAuth struct{ mock.Mock }

func (m *mockAuth) RegisterPatient(ctx context.Context, cmd *service.RegisterPatientCommand) (*domain.User, error) {
	args := m.Called(cmd)
	return ret[*domain.User](args, 0), args.Error(1)
}
func (m *mockAuth) RegisterDoctor(ctx context.Context, cmd *service.RegisterDoctorCommand) (*domain.User, error) {
	args := m.Called(cmd)
	return ret[*domain.User](args, 0), args.Error(1)
}
func (m *mockAuth) Login(ctx context.Context, email, password, otp, ip string) (*domain.TokenPair, error) {
	args := m.Called(email, password, otp)
	return ret[*domain.TokenPair](args, 0), args.Error(1)
}
func (m *mockAuth) RefreshToken(ctx context.Context, token string) (*domain.TokenPair, error) {
	args := m.Called(token)
	return ret[*domain.TokenPair](args, 0), args.Error(1)
}
func (m *mockAuth) ChangePassword(ctx context.Context, userID uuid.UUID, cur, next string) error {
	return m.Called(userID, cur, next).Error(0)
}
func (m *mockAuth) EnrollMFA(ctx context.Context, userID uuid.UUID) (*auth.TOTPEnrollment, error) {
	args := m.Called(userID)
	return ret[*auth.TOTPEnrollment](args, 0), args.Error(1)
}
func (m *mockAuth) EnableMFA(ctx context.Context, userID uuid.UUID, code string) error {
	return m.Called(userID, code).Error(0)
}
func (m *mockAuth) DisableMFA(ctx context.Context, userID uuid.UUID, code string) error {
	return m.Called(userID, code).Error(0)
}
func (m *mockAuth) GetMe(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	args := m.Called(userID)
	return ret[*domain.User](args, 0), args.Error(1)
}
func (m *mockAuth) UpdateMe(ctx context.Context, userID uuid.UUID, cmd *service.UpdateMeCommand) (*domain.User, error) {
	args := m.Called(userID, cmd)
	return ret[*domain.User](args, 0), args.Error(1)
}

type mockDoctors struct{ mock.Mock }

func (m *mockDoctors) GetDoctor(ctx context.Context, actor domain.Actor, id uuid.UUID) (*doctor.Doctor, error) {
	args := m.Called(actor, id)
	return ret[*doctor.Doctor](args, 0), args.Error(1)
}
func (m *mockDoctors) UpdateProfile(ctx context.Context, actor domain.Actor, cmd *doctor.UpdateProfileCommand) (*doctor.Doctor, error) {
	args := m.Called(actor, cmd)
	return ret[*doctor.Doctor](args, 0), args.Error(1)
}
func (m *mockDoctors) SetAvailability(ctx context.Context, actor domain.Actor, windows []doctor.Window, tz *string) (*doctor.Doctor, error) {
	args := m.Called(actor, windows, tz)
	return ret[*doctor.Doctor](args, 0), args.Error(1)
}
func (m *mockDoctors) AvailableSlots(ctx context.Context, id uuid.UUID, day time.Time) ([]doctor.Interval, error) {
	args := m.Called(id, day)
	return ret[[]doctor.Interval](args, 0), args.Error(1)
}
func (m *mockDoctors) SearchDoctors(ctx context.Context, q *doctor.SearchQuery) (*doctor.PagedResults, error) {
	args := m.Called(q)
	return ret[*doctor.PagedResults](args, 0), args.Error(1)
}
func (m *mockDoctors) ListPending(ctx context.Context, actor domain.Actor, q *doctor.ListPendingQuery) (*doctor.PagedDoctors, error) {
	args := m.Called(actor, q)
	return ret[*doctor.PagedDoctors](args, 0), args.Error(1)
}
func (m *mockDoctors) SetVerified(ctx context.Context, actor domain.Actor, id uuid.UUID, verified bool) (*doctor.Doctor, error) {
	args := m.Called(actor, id, verified)
	return ret[*doctor.Doctor](args, 0), args.Error(1)
}

type mockPatients struct{ mock.Mock }

func (m *mockPatients) GetMyProfile(ctx context.Context, actor domain.Actor) (*patient.Patient, error) {
	args := m.Called(actor)
	return ret[*patient.Patient](args, 0), args.Error(1)
}
func (m *mockPatients) UpdateMyProfile(ctx context.Context, actor domain.Actor, cmd *patient.UpdatePatientCommand) (*patient.Patient, error) {
	args := m.Called(actor, cmd)
	return ret[*patient.Patient](args, 0), args.Error(1)
}
func (m *mockPatients) GetPatient(ctx context.Context, actor domain.Actor, id uuid.UUID) (*patient.Patient, error) {
	args := m.Called(actor, id)
	return ret[*patient.Patient](args, 0), args.Error(1)
}

type mockAppointments struct{ mock.Mock }

func (m *mockAppointments) Book(ctx context.Context, actor domain.Actor, cmd *appointment.BookCommand) (*appointment.Appointment, error) {
	args := m.Called(actor, cmd)
	return ret[*appointment.Appointment](args, 0), args.Error(1)
}
func (m *mockAppointments) GetAppointment(ctx context.Context, actor domain.Actor, id uuid.UUID) (*appointment.Appointment, error) {
	args := m.Called(actor, id)
	return ret[*appointment.Appointment](args, 0), args.Error(1)
}
func (m *mockAppointments) ListAppointments(ctx context.Context, actor domain.Actor, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	args := m.Called(actor, q)
	return ret[*appointment.PagedAppointments](args, 0), args.Error(1)
}
func (m *mockAppointments) Accept(ctx context.Context, actor domain.Actor, id uuid.UUID) (*appointment.Appointment, error) {
	args := m.Called(actor, id)
	return ret[*appointment.Appointment](args, 0), args.Error(1)
}
func (m *mockAppointments) Reject(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*appointment.Appointment, error) {
	args := m.Called(actor, id, reason)
	return ret[*appointment.Appointment](args, 0), args.Error(1)
}
func (m *mockAppointments) Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*appointment.Appointment, error) {
	args := m.Called(actor, id, reason)
	return ret[*appointment.Appointment](args, 0), args.Error(1)
}
func (m *mockAppointments) Complete(ctx context.Context, actor domain.Actor, id uuid.UUID) (*appointment.Appointment, error) {
	args := m.Called(actor, id)
	return ret[*appointment.Appointment](args, 0), args.Error(1)
}
func (m *mockAppointments) GetMeetingLink(ctx context.Context, actor domain.Actor, id uuid.UUID) (*service.MeetingLink, error) {
	args := m.Called(actor, id)
	return ret[*service.MeetingLink](args, 0), args.Error(1)
}
func (m *mockAppointments) HandleMeetingEvent(ctx context.Context, ev *meeting.Event) error {
	return m.Called(ev).Error(0)
}

type mockPayments struct{ mock.Mock }

func (m *mockPayments) CreatePayment(ctx context.Context, actor domain.Actor, id uuid.UUID) (*payment.Payment, error) {
	args := m.Called(actor, id)
	return ret[*payment.Payment](args, 0), args.Error(1)
}
func (m *mockPayments) GetForAppointment(ctx context.Context, actor domain.Actor, id uuid.UUID) (*payment.Payment, error) {
	args := m.Called(actor, id)
	return ret[*payment.Payment](args, 0), args.Error(1)
}
func (m *mockPayments) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	return m.Called(payload, signature).Error(0)
}

type mockMeetingParser struct{ mock.Mock }

func (m *mockMeetingParser) ParseWebhook(body []byte, signature, timestamp string, now time.Time) (*meetings.Webhook, error) {
	args := m.Called(body, signature, timestamp)
	return ret[*meetings.Webhook](args, 0), args.Error(1)
}

type mockReviews struct{ mock.Mock }

func (m *mockReviews) Create(ctx context.Context, actor domain.Actor, cmd *service.CreateReviewCommand) (*review.Review, error) {
	args := m.Called(actor, cmd)
	return ret[*review.Review](args, 0), args.Error(1)
}
func (m *mockReviews) ListForDoctor(ctx context.Context, q *review.ListQuery) (*review.PagedReviews, error) {
	args := m.Called(q)
	return ret[*review.PagedReviews](args, 0), args.Error(1)
}
func (m *mockReviews) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	return m.Called(actor, id).Error(0)
}

type mockDocuments struct{ mock.Mock }

func (m *mockDocuments) Upload(ctx context.Context, actor domain.Actor, cmd *document.UploadCommand, r io.Reader) (*document.Document, error) {
	body, _ := io.ReadAll(r)
	args := m.Called(actor, cmd, body)
	return ret[*document.Document](args, 0), args.Error(1)
}
func (m *mockDocuments) Get(ctx context.Context, actor domain.Actor, id uuid.UUID) (*document.Document, error) {
	args := m.Called(actor, id)
	return ret[*document.Document](args, 0), args.Error(1)
}
func (m *mockDocuments) Download(ctx context.Context, actor domain.Actor, id uuid.UUID) (*document.Document, io.ReadCloser, error) {
	args := m.Called(actor, id)
	return ret[*document.Document](args, 0), ret[io.ReadCloser](args, 1), args.Error(2)
}
func (m *mockDocuments) List(ctx context.Context, actor domain.Actor, q *document.ListDocumentsQuery) (*document.PagedDocuments, error) {
	args := m.Called(actor, q)
	return ret[*document.PagedDocuments](args, 0), args.Error(1)
}
func (m *mockDocuments) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	return m.Called(actor, id).Error(0)
}

type mockNotifications struct{ mock.Mock }

func (m *mockNotifications) List(ctx context.Context, actor domain.Actor, unreadOnly bool, page, size int) (*notification.PagedNotifications, error) {
	args := m.Called(actor, unreadOnly, page, size)
	return ret[*notification.PagedNotifications](args, 0), args.Error(1)
}
func (m *mockNotifications) MarkRead(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	return m.Called(actor, id).Error(0)
}
func (m *mockNotifications) MarkAllRead(ctx context.Context, actor domain.Actor) (int64, error) {
	args := m.Called(actor)
	return args.Get(0).(int64), args.Error(1)
}

type mockAdmin struct{ mock.Mock }

func (m *mockAdmin) ListUsers(ctx context.Context, actor domain.Actor, q *domain.ListUsersQuery) (*domain.PagedUsers, error) {
	args := m.Called(actor, q)
	return ret[*domain.PagedUsers](args, 0), args.Error(1)
}
func (m *mockAdmin) SetUserActive(ctx context.Context, actor domain.Actor, id uuid.UUID, active bool) (*domain.User, error) {
	args := m.Called(actor, id, active)
	return ret[*domain.User](args, 0), args.Error(1)
}
func (m *mockAdmin) Stats(ctx context.Context, actor domain.Actor) (*service.Stats, error) {
	args := m.Called(actor)
	return ret[*service.Stats](args, 0), args.Error(1)
}

// staticTokens maps bearer tokens to claims.
type staticTokens map[string]*domain.Claims

func (s staticTokens) ValidateAccessToken(token string) (*domain.Claims, error) {
	if c, ok := s[token]; ok {
		return c, nil
	}
	return nil, auth.ErrTokenInvalid
}
