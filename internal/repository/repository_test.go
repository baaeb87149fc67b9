package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/document"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/payment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/review"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	require.NoError(t, err)
	return db, mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func uniqueErr(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func TestUserRepository_CreatePatientAccount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`INSERT INTO "auth"."users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectQuery(q(`INSERT INTO "clinical"."patients"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectCommit()

	u := &domain.User{Email: "a@example.com", Role: domain.RolePatient, IsActive: true}
	p := &patient.Patient{FirstName: "Ann"}
	require.NoError(t, repo.CreatePatientAccount(context.Background(), u, p))

	require.NotNil(t, u.PatientID)
	assert.Equal(t, u.ID, p.UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreatePatientAccount_EmailTaken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`INSERT INTO "auth"."users"`)).WillReturnError(uniqueErr("idx_auth_users_email"))
	mock.ExpectRollback()

	err := repo.CreatePatientAccount(context.Background(), &domain.User{}, &patient.Patient{})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateDoctorAccount_LicenseTaken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`INSERT INTO "auth"."users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectQuery(q(`INSERT INTO "clinical"."doctors"`)).WillReturnError(uniqueErr("idx_clinical_doctors_license_number"))
	mock.ExpectRollback()

	err := repo.CreateDoctorAccount(context.Background(), &domain.User{}, &doctor.Doctor{})
	assert.ErrorIs(t, err, doctor.ErrLicenseTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByEmail_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(q(`SELECT * FROM "auth"."users" WHERE email = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByEmail(context.Background(), "  A@Example.com ")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_RecordLoginFailure_ExpiredLockRestartsCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	id := uuid.New()
	at := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(q(`UPDATE "auth"."users" SET "failed_login_count"=CASE WHEN locked_until IS NOT NULL AND locked_until <= $1 THEN 1 ELSE failed_login_count + 1 END,`+
		`"locked_until"=CASE WHEN (CASE WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN 1 ELSE failed_login_count + 1 END) >= $3 THEN $4::timestamptz WHEN locked_until <= $5 THEN NULL ELSE locked_until END`)).
		WithArgs(at, at, 5, at.Add(15*time.Minute), at, sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordLoginFailure(context.Background(), id, 5, 15*time.Minute, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_HasDoctorConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)
	start := time.Date(2030, 1, 7, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "clinical"."appointments" WHERE .*status IN \(\$1,\$2,\$3\).*make_interval.*doctor_id = \$6`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	conflict, err := repo.HasDoctorConflict(context.Background(), uuid.New(), start, start.Add(30*time.Minute), nil)
	require.NoError(t, err)
	assert.True(t, conflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_UpdateStatusIf_LostRace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)

	mock.ExpectExec(q(`UPDATE "clinical"."appointments" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	a := &appointment.Appointment{ID: uuid.New(), Status: appointment.StatusConfirmed}
	err := repo.UpdateStatusIf(context.Background(), a, appointment.StatusPaymentPending)
	assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_SetMeeting(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)

	update := `UPDATE "clinical"."appointments" SET .*"meeting_id"=\$\d+,"meeting_join_url"=\$\d+,"meeting_host_url"=\$\d+,"meeting_passcode"=\$\d+ ` +
		`WHERE \(?id = \$\d+ AND status = \$\d+ AND meeting_id = '' AND deleted_at IS NULL\)?`
	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))

	a := &appointment.Appointment{ID: uuid.New(), Status: appointment.StatusConfirmed, MeetingID: "m-1", MeetingJoinURL: "https://meet/j"}
	stored, err := repo.SetMeeting(context.Background(), a)
	require.NoError(t, err)
	assert.True(t, stored)

	// Cancelled, or holding another meeting.
	stored, err = repo.SetMeeting(context.Background(), a)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_ClearMeeting(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)
	id := uuid.New()

	mock.ExpectExec(`UPDATE "clinical"."appointments" SET "meeting_host_url"=\$1,"meeting_id"=\$2,"meeting_join_url"=\$3,"meeting_passcode"=\$4,.*WHERE \(?id = \$\d+ AND meeting_id = \$\d+\)?`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ClearMeeting(context.Background(), id, "m-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_MarkReminded(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)

	mock.ExpectExec(q(`UPDATE "clinical"."appointments" SET "reminder_sent_at"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q(`UPDATE "clinical"."appointments" SET "reminder_sent_at"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.MarkReminded(context.Background(), uuid.New(), time.Now())
	require.NoError(t, err)
	assert.True(t, first)

	second, err := repo.MarkReminded(context.Background(), uuid.New(), time.Now())
	require.NoError(t, err)
	assert.False(t, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepository_CountByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAppointmentRepository(db)

	mock.ExpectQuery(q(`SELECT status, COUNT(*) AS count FROM "clinical"."appointments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("confirmed", 3).
			AddRow("completed", 7))

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[appointment.StatusConfirmed])
	assert.Equal(t, int64(7), counts[appointment.StatusCompleted])
}

func TestDoctorRepository_Search(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDoctorRepository(db)
	mode := doctor.ModeOnline
	minFee := int64(1000)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "clinical"."doctors" WHERE .*is_verified.*LOWER\(specialization\).*languages::jsonb @>.*offers_online.*consultation_fee >=`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(45))
	mock.ExpectQuery(`SELECT \* FROM "clinical"."doctors" WHERE .* ORDER BY consultation_fee ASC.* LIMIT \$\d+ OFFSET \$\d+`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name"}).
			AddRow(uuid.New(), "Asha").
			AddRow(uuid.New(), "Ravi"))

	res, err := repo.Search(context.Background(), &doctor.SearchQuery{
		Specialization: "Cardiology",
		Language:       "hi",
		Mode:           &mode,
		MinFee:         &minFee,
		SortBy:         doctor.SortFee,
		Page:           2,
		PageSize:       20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(45), res.TotalCount)
	assert.Equal(t, 3, res.TotalPages)
	assert.Len(t, res.Doctors, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDoctorRepository_UpdateVerification_WritesOnlyItsColumns(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDoctorRepository(db)

	mock.ExpectExec(q(`UPDATE "clinical"."doctors" SET "updated_at"=$1,"is_verified"=$2,"verified_at"=$3,"verified_by"=$4 WHERE`) + ` \(?id = \$5 AND deleted_at IS NULL\)?`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	by := uuid.New()
	d := &doctor.Doctor{ID: uuid.New(), FirstName: "stale", RatingCount: 9}
	d.Verify(by)
	require.NoError(t, repo.UpdateVerification(context.Background(), d))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDoctorRepository_UpdateProfile_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDoctorRepository(db)

	mock.ExpectExec(`UPDATE "clinical"."doctors" SET .*"first_name"=.*"slot_minutes"=\$\d+ WHERE`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateProfile(context.Background(), &doctor.Doctor{ID: uuid.New(), FirstName: "Asha"})
	assert.ErrorIs(t, err, doctor.ErrDoctorNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepository_RecordEvent_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(q(`INSERT INTO "billing"."webhook_events"`)).
		WillReturnError(uniqueErr("idx_billing_webhook_events_event_id"))

	err := repo.RecordEvent(context.Background(), &payment.WebhookEvent{EventID: "evt_1", Type: "x", Payload: "{}"})
	assert.ErrorIs(t, err, payment.ErrDuplicateEvent)
}

func TestDocumentRepository_Delete_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDocumentRepository(db)

	mock.ExpectExec(q(`UPDATE "records"."documents" SET "deleted_at"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), uuid.New())
	assert.ErrorIs(t, err, document.ErrDocumentNotFound)
}

func TestReviewRepository_CreateAndAggregate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReviewRepository(db)
	doctorID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(q(`INSERT INTO "clinical"."reviews"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectQuery(q(`SELECT COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count FROM "clinical"."reviews"`)).
		WillReturnRows(sqlmock.NewRows([]string{"average", "count"}).AddRow(4.5, 2))
	mock.ExpectExec(q(`UPDATE "clinical"."doctors" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	agg, err := repo.CreateAndAggregate(context.Background(), &review.Review{DoctorID: doctorID, Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, 4.5, agg.Average)
	assert.Equal(t, 2, agg.Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_CreateAndAggregate_Duplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReviewRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(q(`INSERT INTO "clinical"."reviews"`)).
		WillReturnError(uniqueErr("idx_clinical_reviews_appointment_id"))
	mock.ExpectRollback()

	_, err := repo.CreateAndAggregate(context.Background(), &review.Review{Rating: 5})
	assert.ErrorIs(t, err, review.ErrAlreadyReviewed)
}

func TestAuditRepository_CreateBatch(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditRepository(db)

	mock.ExpectQuery(q(`INSERT INTO "audit"."logs"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()).AddRow(uuid.New()))

	err := repo.CreateBatch(context.Background(), []*domain.AuditLog{
		{UserID: uuid.New(), UserRole: domain.RolePatient, Action: domain.ActionRead, ResourceType: "document", Changes: "{}"},
		{UserID: uuid.New(), UserRole: domain.RoleDoctor, Action: domain.ActionUpdate, ResourceType: "appointment", Changes: "{}"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.NoError(t, repo.CreateBatch(context.Background(), nil))
}

func TestPaging(t *testing.T) {
	page, size := normalizePage(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, defaultPageSize, size)

	_, size = normalizePage(3, 500)
	assert.Equal(t, maxPageSize, size)

	assert.Equal(t, 40, offset(3, 20))
	assert.Equal(t, 0, totalPages(0, 20))
	assert.Equal(t, 3, totalPages(41, 20))
	assert.Equal(t, `50\% off\_x`, escapeLike("50% off_x"))
}
