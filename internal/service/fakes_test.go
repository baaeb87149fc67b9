package service

import (
	"context"
	"sync"
	"testing"
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
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/events"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider/email"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/geo"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func testMetrics() *metrics.Collector {
	return metrics.NewCollector("test", prometheus.NewRegistry())
}

type memAudit struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
	batches int
}

func (m *memAudit) CreateBatch(_ context.Context, batch []*domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
	m.entries = append(m.entries, batch...)
	return nil
}

func (m *memAudit) actions() []domain.AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditAction, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

// newTestAudit returns an audit service that is flushed when the test ends.
func newTestAudit(t *testing.T) (*AuditService, *memAudit) {
	t.Helper()
	repo := &memAudit{}
	svc := newAuditService(repo, testMetrics(), zap.NewNop(), 100)
	t.Cleanup(svc.Shutdown)
	return svc, repo
}

// ------------------------- appointments -------------------------

type memAppointments struct {
	mu    sync.Mutex
	items map[uuid.UUID]*appointment.Appointment

	// statusErrs are returned, in order, by the next UpdateStatusIf calls.
	statusErrs []error
}

func newMemAppointments(items ...*appointment.Appointment) *memAppointments {
	m := &memAppointments{items: make(map[uuid.UUID]*appointment.Appointment)}
	for _, a := range items {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		m.items[a.ID] = a
	}
	return m
}

func (m *memAppointments) get(id uuid.UUID) *appointment.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.items[id]
	return &cp
}

func (m *memAppointments) Create(_ context.Context, a *appointment.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	cp := *a
	m.items[a.ID] = &cp
	return nil
}

func (m *memAppointments) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAppointments) List(_ context.Context, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &appointment.PagedAppointments{Page: q.Page, PageSize: q.PageSize}
	for _, a := range m.items {
		if q.PatientID != nil && a.PatientID != *q.PatientID {
			continue
		}
		if q.DoctorID != nil && a.DoctorID != *q.DoctorID {
			continue
		}
		cp := *a
		out.Appointments = append(out.Appointments, &cp)
	}
	out.TotalCount = int64(len(out.Appointments))
	return out, nil
}

// put stores a copy of a as is.
func (m *memAppointments) put(a *appointment.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.items[a.ID] = &cp
}

func (m *memAppointments) SetMeeting(_ context.Context, a *appointment.Appointment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[a.ID]
	if !ok || cur.Status != appointment.StatusConfirmed || cur.MeetingID != "" {
		return false, nil
	}
	cur.MeetingID, cur.MeetingJoinURL = a.MeetingID, a.MeetingJoinURL
	cur.MeetingHostURL, cur.MeetingPasscode = a.MeetingHostURL, a.MeetingPasscode
	return true, nil
}

func (m *memAppointments) ClearMeeting(_ context.Context, id uuid.UUID, meetingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.items[id]; ok && cur.MeetingID == meetingID {
		cur.ClearMeeting()
	}
	return nil
}

func (m *memAppointments) UpdateStatusIf(_ context.Context, a *appointment.Appointment, from appointment.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.statusErrs) > 0 {
		err := m.statusErrs[0]
		m.statusErrs = m.statusErrs[1:]
		if err != nil {
			return err
		}
	}
	cur, ok := m.items[a.ID]
	if !ok {
		return appointment.ErrAppointmentNotFound
	}
	if cur.Status != from {
		return appointment.ErrInvalidStatusTransition
	}
	cur.Status = a.Status
	cur.RejectionReason = a.RejectionReason
	cur.CancelledAt, cur.CancellationReason, cur.CancelledBy = a.CancelledAt, a.CancellationReason, a.CancelledBy
	cur.AcceptedAt, cur.ConfirmedAt, cur.CompletedAt = a.AcceptedAt, a.ConfirmedAt, a.CompletedAt
	return nil
}

func (m *memAppointments) overlaps(match func(*appointment.Appointment) bool, start, end time.Time, exclude *uuid.UUID) bool {
	want := doctor.Interval{Start: start, End: end}
	for _, a := range m.items {
		if !match(a) || (exclude != nil && a.ID == *exclude) {
			continue
		}
		active := false
		for _, s := range appointment.ActiveStatuses {
			active = active || a.Status == s
		}
		if active && want.Overlaps(doctor.Interval{Start: a.ScheduledAt, End: a.EndsAt()}) {
			return true
		}
	}
	return false
}

func (m *memAppointments) HasDoctorConflict(_ context.Context, doctorID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overlaps(func(a *appointment.Appointment) bool { return a.DoctorID == doctorID }, start, end, exclude), nil
}

func (m *memAppointments) HasPatientConflict(_ context.Context, patientID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overlaps(func(a *appointment.Appointment) bool { return a.PatientID == patientID }, start, end, exclude), nil
}

func (m *memAppointments) BusyIntervals(_ context.Context, doctorID uuid.UUID, from, to time.Time) ([]*appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*appointment.Appointment
	for _, a := range m.items {
		if a.DoctorID == doctorID && a.ScheduledAt.Before(to) && a.EndsAt().After(from) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAppointments) HasCareRelationship(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.items {
		if a.DoctorID == doctorID && a.PatientID == patientID &&
			(a.Status == appointment.StatusConfirmed || a.Status == appointment.StatusCompleted) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memAppointments) GetByMeetingID(_ context.Context, meetingID string) (*appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.items {
		if a.MeetingID == meetingID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, appointment.ErrAppointmentNotFound
}

func (m *memAppointments) DueForReminder(_ context.Context, now time.Time, lead time.Duration) ([]*appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*appointment.Appointment
	for _, a := range m.items {
		if a.Status == appointment.StatusConfirmed && a.ReminderSentAt == nil &&
			a.ScheduledAt.After(now) && !a.ScheduledAt.After(now.Add(lead)) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memAppointments) MarkReminded(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok || a.ReminderSentAt != nil {
		return false, nil
	}
	a.ReminderSentAt = &at
	return true, nil
}

func (m *memAppointments) CountByStatus(_ context.Context) (map[appointment.Status]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[appointment.Status]int64)
	for _, a := range m.items {
		out[a.Status]++
	}
	return out, nil
}

// ------------------------- doctors -------------------------

type memDoctors struct {
	mu    sync.Mutex
	items map[uuid.UUID]*doctor.Doctor
}

func newMemDoctors(items ...*doctor.Doctor) *memDoctors {
	m := &memDoctors{items: make(map[uuid.UUID]*doctor.Doctor)}
	for _, d := range items {
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		m.items[d.ID] = d
	}
	return m
}

func (m *memDoctors) GetByID(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok {
		return nil, doctor.ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDoctors) GetByUserID(_ context.Context, userID uuid.UUID) (*doctor.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.items {
		if d.UserID == userID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, doctor.ErrDoctorNotFound
}

// put stores a copy of d as is.
func (m *memDoctors) put(d *doctor.Doctor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.items[d.ID] = &cp
}

func (m *memDoctors) update(id uuid.UUID, write func(cur *doctor.Doctor)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[id]
	if !ok {
		return doctor.ErrDoctorNotFound
	}
	write(cur)
	return nil
}

func (m *memDoctors) UpdateProfile(_ context.Context, d *doctor.Doctor) error {
	return m.update(d.ID, func(cur *doctor.Doctor) {
		cur.FirstName, cur.LastName, cur.Specialization = d.FirstName, d.LastName, d.Specialization
		cur.Qualifications, cur.Languages = d.Qualifications, d.Languages
		cur.YearsExperience, cur.Bio = d.YearsExperience, d.Bio
		cur.ConsultationFee, cur.OffersOnline, cur.OffersInPerson = d.ConsultationFee, d.OffersOnline, d.OffersInPerson
		cur.ClinicAddress, cur.City, cur.Country = d.ClinicAddress, d.City, d.Country
		cur.Latitude, cur.Longitude = d.Latitude, d.Longitude
		cur.SlotMinutes = d.SlotMinutes
	})
}

func (m *memDoctors) UpdateAvailability(_ context.Context, d *doctor.Doctor) error {
	return m.update(d.ID, func(cur *doctor.Doctor) {
		cur.Availability, cur.Timezone = d.Availability, d.Timezone
	})
}

func (m *memDoctors) UpdateVerification(_ context.Context, d *doctor.Doctor) error {
	return m.update(d.ID, func(cur *doctor.Doctor) {
		cur.IsVerified, cur.VerifiedAt, cur.VerifiedBy = d.IsVerified, d.VerifiedAt, d.VerifiedBy
	})
}

func (m *memDoctors) verified() []*doctor.Doctor {
	var out []*doctor.Doctor
	for _, d := range m.items {
		if d.IsVerified {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out
}

func (m *memDoctors) Search(_ context.Context, q *doctor.SearchQuery) (*doctor.PagedDoctors, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.verified()
	return &doctor.PagedDoctors{Doctors: all, TotalCount: int64(len(all)), Page: q.Page, PageSize: q.PageSize, TotalPages: 1}, nil
}

func (m *memDoctors) SearchAll(_ context.Context, _ *doctor.SearchQuery) ([]*doctor.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verified(), nil
}

func (m *memDoctors) ListPending(_ context.Context, q *doctor.ListPendingQuery) (*doctor.PagedDoctors, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*doctor.Doctor
	for _, d := range m.items {
		if !d.IsVerified {
			cp := *d
			out = append(out, &cp)
		}
	}
	return &doctor.PagedDoctors{Doctors: out, TotalCount: int64(len(out)), Page: q.Page, PageSize: q.PageSize}, nil
}

func (m *memDoctors) CountVerified(_ context.Context) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var verified, pending int64
	for _, d := range m.items {
		if d.IsVerified {
			verified++
		} else {
			pending++
		}
	}
	return verified, pending, nil
}

// ------------------------- payments -------------------------

type memPayments struct {
	mu     sync.Mutex
	items  map[uuid.UUID]*payment.Payment
	events map[string]bool
}

func newMemPayments(items ...*payment.Payment) *memPayments {
	m := &memPayments{items: make(map[uuid.UUID]*payment.Payment), events: make(map[string]bool)}
	for _, p := range items {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		m.items[p.ID] = p
	}
	return m
}

func (m *memPayments) Create(_ context.Context, p *payment.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *memPayments) Save(_ context.Context, p *payment.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.items[p.ID] = &cp
	return nil
}

func (m *memPayments) GetByProviderID(_ context.Context, id string) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.items {
		if p.ProviderPaymentID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, payment.ErrPaymentNotFound
}

func (m *memPayments) LatestForAppointment(_ context.Context, appointmentID uuid.UUID) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *payment.Payment
	for _, p := range m.items {
		if p.AppointmentID == appointmentID && (latest == nil || p.CreatedAt.After(latest.CreatedAt)) {
			latest = p
		}
	}
	if latest == nil {
		return nil, payment.ErrPaymentNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memPayments) RecordEvent(_ context.Context, e *payment.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.events[e.EventID] {
		return payment.ErrDuplicateEvent
	}
	m.events[e.EventID] = true
	return nil
}

func (m *memPayments) ForgetEvent(_ context.Context, eventID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, eventID)
	return nil
}

func (m *memPayments) Revenue(_ context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64)
	for _, p := range m.items {
		if p.Status == payment.StatusSucceeded {
			out[p.Currency] += p.Amount
		}
	}
	return out, nil
}

func (m *memPayments) only() *payment.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.items {
		cp := *p
		return &cp
	}
	return nil
}

// ------------------------- users -------------------------

type memUsers struct {
	mu       sync.Mutex
	items    map[uuid.UUID]*domain.User
	patients map[uuid.UUID]*patient.Patient
	doctors  map[uuid.UUID]*doctor.Doctor
	failures map[uuid.UUID]int
}

func newMemUsers(items ...*domain.User) *memUsers {
	m := &memUsers{
		items:    make(map[uuid.UUID]*domain.User),
		patients: make(map[uuid.UUID]*patient.Patient),
		doctors:  make(map[uuid.UUID]*doctor.Doctor),
		failures: make(map[uuid.UUID]int),
	}
	for _, u := range items {
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		m.items[u.ID] = u
	}
	return m
}

func (m *memUsers) emailTaken(email string) bool {
	for _, u := range m.items {
		if u.Email == email {
			return true
		}
	}
	return false
}

func (m *memUsers) CreatePatientAccount(_ context.Context, u *domain.User, p *patient.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailTaken(u.Email) {
		return domain.ErrEmailTaken
	}
	u.ID, p.ID = uuid.New(), uuid.New()
	p.UserID = u.ID
	u.PatientID = &p.ID
	m.items[u.ID] = u
	m.patients[p.ID] = p
	return nil
}

func (m *memUsers) CreateDoctorAccount(_ context.Context, u *domain.User, d *doctor.Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailTaken(u.Email) {
		return domain.ErrEmailTaken
	}
	u.ID, d.ID = uuid.New(), uuid.New()
	d.UserID = u.ID
	u.DoctorID = &d.ID
	m.items[u.ID] = u
	m.doctors[d.ID] = d
	return nil
}

func (m *memUsers) find(match func(*domain.User) bool) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.items {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.Email == email })
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.ID == id })
}

func (m *memUsers) GetByDoctorID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.DoctorID != nil && *u.DoctorID == id })
}

func (m *memUsers) GetByPatientID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	return m.find(func(u *domain.User) bool { return u.PatientID != nil && *u.PatientID == id })
}

func (m *memUsers) RecordLoginFailure(_ context.Context, id uuid.UUID, maxAttempts int, lockFor time.Duration, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.items[id]
	if u.LockedUntil != nil && !u.LockedUntil.After(at) {
		m.failures[id] = 0
		u.LockedUntil = nil
	}
	m.failures[id]++
	u.FailedLoginCount = m.failures[id]
	if u.FailedLoginCount >= maxAttempts {
		until := at.Add(lockFor)
		u.LockedUntil = &until
	}
	return nil
}

func (m *memUsers) RecordLoginSuccess(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[id] = 0
	u := m.items[id]
	u.FailedLoginCount = 0
	u.LockedUntil = nil
	u.LastLoginAt = &at
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash string, changedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id].PasswordHash = hash
	m.items[id].PasswordChangedAt = changedAt
	return nil
}

func (m *memUsers) Save(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.items[u.ID] = &cp
	return nil
}

func (m *memUsers) List(_ context.Context, q *domain.ListUsersQuery) (*domain.PagedUsers, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &domain.PagedUsers{Page: q.Page, PageSize: q.PageSize}
	for _, u := range m.items {
		if q.Role != nil && u.Role != *q.Role {
			continue
		}
		cp := *u
		out.Users = append(out.Users, &cp)
	}
	out.TotalCount = int64(len(out.Users))
	return out, nil
}

func (m *memUsers) CountByRole(_ context.Context) (map[domain.Role]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[domain.Role]int64)
	for _, u := range m.items {
		out[u.Role]++
	}
	return out, nil
}

// ------------------------- notifications -------------------------

type memNotifications struct {
	mu    sync.Mutex
	items []*notification.Notification
}

func (m *memNotifications) Create(_ context.Context, n *notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uuid.New()
	cp := *n
	m.items = append(m.items, &cp)
	return nil
}

func (m *memNotifications) Save(_ context.Context, n *notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, cur := range m.items {
		if cur.ID == n.ID {
			cp := *n
			m.items[i] = &cp
		}
	}
	return nil
}

func (m *memNotifications) List(_ context.Context, q *notification.ListQuery) (*notification.PagedNotifications, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &notification.PagedNotifications{Page: q.Page, PageSize: q.PageSize}
	for _, n := range m.items {
		if n.UserID != q.UserID || n.Channel != notification.ChannelInApp {
			continue
		}
		if n.ReadAt == nil {
			out.Unread++
		} else if q.UnreadOnly {
			continue
		}
		cp := *n
		out.Notifications = append(out.Notifications, &cp)
	}
	out.TotalCount = int64(len(out.Notifications))
	return out, nil
}

func (m *memNotifications) MarkRead(_ context.Context, userID, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.ID == id && n.UserID == userID {
			n.ReadAt = &at
			return nil
		}
	}
	return notification.ErrNotificationNotFound
}

func (m *memNotifications) MarkAllRead(_ context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, item := range m.items {
		if item.UserID == userID && item.ReadAt == nil {
			item.ReadAt = &at
			n++
		}
	}
	return n, nil
}

func (m *memNotifications) byChannel(userID uuid.UUID, ch notification.Channel) []*notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*notification.Notification
	for _, n := range m.items {
		if n.UserID == userID && n.Channel == ch {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out
}

// ------------------------- documents -------------------------

type memDocuments struct {
	mu    sync.Mutex
	items map[uuid.UUID]*document.Document
}

func newMemDocuments() *memDocuments {
	return &memDocuments{items: make(map[uuid.UUID]*document.Document)}
}

func (m *memDocuments) Create(_ context.Context, d *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *d
	m.items[d.ID] = &cp
	return nil
}

func (m *memDocuments) GetByID(_ context.Context, id uuid.UUID) (*document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.items[id]
	if !ok {
		return nil, document.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDocuments) List(_ context.Context, q *document.ListDocumentsQuery) (*document.PagedDocuments, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &document.PagedDocuments{Page: q.Page, PageSize: q.PageSize}
	for _, d := range m.items {
		if q.PatientID != nil && d.PatientID != *q.PatientID {
			continue
		}
		cp := *d
		out.Documents = append(out.Documents, &cp)
	}
	out.TotalCount = int64(len(out.Documents))
	return out, nil
}

func (m *memDocuments) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return document.ErrDocumentNotFound
	}
	delete(m.items, id)
	return nil
}

// ------------------------- reviews -------------------------

type memReviews struct {
	mu      sync.Mutex
	items   map[uuid.UUID]*review.Review
	doctors *memDoctors
}

func newMemReviews(doctors *memDoctors) *memReviews {
	return &memReviews{items: make(map[uuid.UUID]*review.Review), doctors: doctors}
}

func (m *memReviews) GetByID(_ context.Context, id uuid.UUID) (*review.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.items[id]
	if !ok {
		return nil, review.ErrReviewNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memReviews) ListForDoctor(_ context.Context, q *review.ListQuery) (*review.PagedReviews, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &review.PagedReviews{Page: q.Page, PageSize: q.PageSize}
	for _, r := range m.items {
		if r.DoctorID == q.DoctorID {
			cp := *r
			out.Reviews = append(out.Reviews, &cp)
		}
	}
	out.TotalCount = int64(len(out.Reviews))
	return out, nil
}

func (m *memReviews) aggregate(doctorID uuid.UUID) *review.Aggregate {
	agg := &review.Aggregate{}
	sum := 0
	for _, r := range m.items {
		if r.DoctorID == doctorID {
			sum += r.Rating
			agg.Count++
		}
	}
	if agg.Count > 0 {
		agg.Average = float64(sum) / float64(agg.Count)
	}
	m.doctors.mu.Lock()
	if d, ok := m.doctors.items[doctorID]; ok {
		d.RatingAverage, d.RatingCount = agg.Average, agg.Count
	}
	m.doctors.mu.Unlock()
	return agg
}

func (m *memReviews) CreateAndAggregate(_ context.Context, r *review.Review) (*review.Aggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cur := range m.items {
		if cur.AppointmentID == r.AppointmentID {
			return nil, review.ErrAlreadyReviewed
		}
	}
	r.ID = uuid.New()
	cp := *r
	m.items[r.ID] = &cp
	return m.aggregate(r.DoctorID), nil
}

func (m *memReviews) DeleteAndAggregate(_ context.Context, r *review.Review) (*review.Aggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, r.ID)
	return m.aggregate(r.DoctorID), nil
}

// ------------------------- collaborators -------------------------

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) CreateIntent(ctx context.Context, appointmentID uuid.UUID, amount int64, currency string) (*payment.Intent, error) {
	args := m.Called(ctx, appointmentID, amount, currency)
	intent, _ := args.Get(0).(*payment.Intent)
	return intent, args.Error(1)
}

func (m *mockProcessor) Refund(ctx context.Context, paymentIntentID string) (string, error) {
	args := m.Called(ctx, paymentIntentID)
	return args.String(0), args.Error(1)
}

func (m *mockProcessor) ParseWebhook(payload []byte, header string, now time.Time) (*payment.Event, error) {
	args := m.Called(payload, header, now)
	ev, _ := args.Get(0).(*payment.Event)
	return ev, args.Error(1)
}

type mockMeetings struct {
	mock.Mock
}

func (m *mockMeetings) CreateMeeting(ctx context.Context, req meeting.CreateRequest) (*meeting.Meeting, error) {
	args := m.Called(ctx, req)
	mt, _ := args.Get(0).(*meeting.Meeting)
	return mt, args.Error(1)
}

func (m *mockMeetings) DeleteMeeting(ctx context.Context, meetingID string) error {
	return m.Called(ctx, meetingID).Error(0)
}

type mockGeocoder struct {
	mock.Mock
}

func (m *mockGeocoder) Geocode(ctx context.Context, address string) (geo.Point, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(geo.Point), args.Error(1)
}

type mockEmail struct {
	mock.Mock
}

func (m *mockEmail) Enabled() bool { return true }

func (m *mockEmail) Send(ctx context.Context, msg email.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type mockSMS struct {
	mock.Mock
}

func (m *mockSMS) Enabled() bool { return true }

func (m *mockSMS) Send(ctx context.Context, to, body string) error {
	return m.Called(ctx, to, body).Error(0)
}

// recordingPublisher keeps every published event in order.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
