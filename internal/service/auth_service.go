package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const maxFailedAttempts = 5

const lockDuration = 15 * time.Minute

const minPasswordLength = 12

type UserRepository interface {
	CreatePatientAccount(ctx context.Context, u *domain.User, p *patient.Patient) error
	CreateDoctorAccount(ctx context.Context, u *domain.User, d *doctor.Doctor) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByDoctorID(ctx context.Context, doctorID uuid.UUID) (*domain.User, error)
	GetByPatientID(ctx context.Context, patientID uuid.UUID) (*domain.User, error)
	RecordLoginFailure(ctx context.Context, id uuid.UUID, maxAttempts int, lockFor time.Duration, at time.Time) error
	RecordLoginSuccess(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string, changedAt time.Time) error
	Save(ctx context.Context, u *domain.User) error
	List(ctx context.Context, q *domain.ListUsersQuery) (*domain.PagedUsers, error)
	CountByRole(ctx context.Context) (map[domain.Role]int64, error)
}

type RegisterPatientCommand struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Phone       string
	DateOfBirth *time.Time
	Gender      patient.Gender
}

type RegisterDoctorCommand struct {
	Email           string
	Password        string
	FirstName       string
	LastName        string
	Phone           string
	Specialization  string
	LicenseNumber   string
	ConsultationFee int64
	Currency        string
}

type UpdateMeCommand struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

type AuthService struct {
	userRepo   UserRepository
	jwtManager *auth.JWTManager
	totp       *auth.TOTP
	audit      *AuditService
	metrics    *metrics.Collector
	log        *zap.Logger
	now        func() time.Time
}

func NewAuthService(
	userRepo UserRepository,
	jwtManager *auth.JWTManager,
	totp *auth.TOTP,
	audit *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		totp:       totp,
		audit:      audit,
		metrics:    m,
		log:        log,
		now:        time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateAccount(v *validation, email, password, first, last string) {
	_, err := mail.ParseAddress(email)
	v.check(email != "" && err == nil, "email is invalid")
	v.check(len(password) >= minPasswordLength, ErrWeakPassword.Error())
	v.check(strings.TrimSpace(first) != "", "first_name is required")
	v.check(strings.TrimSpace(last) != "", "last_name is required")
}

func (s *AuthService) newUser(role domain.Role, email, password, first, last, phone string) (*domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return &domain.User{
		Email:             email,
		PasswordHash:      string(hash),
		FirstName:         strings.TrimSpace(first),
		LastName:          strings.TrimSpace(last),
		Phone:             strings.TrimSpace(phone),
		Role:              role,
		IsActive:          true,
		PasswordChangedAt: s.now(),
	}, nil
}

func (s *AuthService) RegisterPatient(ctx context.Context, cmd *RegisterPatientCommand) (*domain.User, error) {
	email := normalizeEmail(cmd.Email)

	var v validation
	validateAccount(&v, email, cmd.Password, cmd.FirstName, cmd.LastName)
	if cmd.Gender == "" {
		cmd.Gender = patient.GenderUnknown
	}
	v.check(cmd.Gender.IsValid(), "gender is invalid")
	v.check(cmd.DateOfBirth == nil || !cmd.DateOfBirth.After(s.now()), "date_of_birth cannot be in the future")
	if err := v.err(); err != nil {
		return nil, err
	}

	u, err := s.newUser(domain.RolePatient, email, cmd.Password, cmd.FirstName, cmd.LastName, cmd.Phone)
	if err != nil {
		return nil, err
	}
	p := &patient.Patient{
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		DateOfBirth: cmd.DateOfBirth,
		Gender:      cmd.Gender,
		ContactInfo: patient.ContactInfo{Phone: u.Phone},
		IsActive:    true,
	}

	if err := s.userRepo.CreatePatientAccount(ctx, u, p); err != nil {
		return nil, err
	}

	s.metrics.UsersRegisteredTotal.WithLabelValues(string(domain.RolePatient)).Inc()
	s.log.Info("patient registered", zap.String("user_id", u.ID.String()))
	return u, nil
}

func (s *AuthService) RegisterDoctor(ctx context.Context, cmd *RegisterDoctorCommand) (*domain.User, error) {
	email := normalizeEmail(cmd.Email)

	var v validation
	validateAccount(&v, email, cmd.Password, cmd.FirstName, cmd.LastName)
	v.check(strings.TrimSpace(cmd.Specialization) != "", "specialization is required")
	v.check(strings.TrimSpace(cmd.LicenseNumber) != "", "license_number is required")
	v.check(cmd.ConsultationFee >= 0, "consultation_fee cannot be negative")
	if err := v.err(); err != nil {
		return nil, err
	}

	u, err := s.newUser(domain.RoleDoctor, email, cmd.Password, cmd.FirstName, cmd.LastName, cmd.Phone)
	if err != nil {
		return nil, err
	}
	currency := strings.ToLower(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = "usd"
	}
	d := &doctor.Doctor{
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Specialization:  strings.TrimSpace(cmd.Specialization),
		LicenseNumber:   strings.TrimSpace(cmd.LicenseNumber),
		ConsultationFee: cmd.ConsultationFee,
		Currency:        currency,
		OffersOnline:    true,
		SlotMinutes:     doctor.DefaultSlotMinutes,
		Timezone:        "UTC",
		Qualifications:  []string{},
		Languages:       []string{},
		Availability:    []doctor.Window{},
	}

	if err := s.userRepo.CreateDoctorAccount(ctx, u, d); err != nil {
		return nil, err
	}

	s.metrics.UsersRegisteredTotal.WithLabelValues(string(domain.RoleDoctor)).Inc()
	s.log.Info("doctor registered, awaiting verification",
		zap.String("user_id", u.ID.String()),
		zap.String("doctor_id", d.ID.String()),
	)
	return u, nil
}

func (s *AuthService) Login(ctx context.Context, email, password, otp, ip string) (*domain.TokenPair, error) {
	email = normalizeEmail(email)
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.log.Error("loading user for login", logger.Email("email", email), zap.Error(err))
		}
		// Use bcrypt dummy hash to prevent timing-based user enumeration.
		// An attacker measuring response time should not be able to determine
		// whether the email exists in the system.
		_, _ = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	if user.LockedUntil != nil && s.now().Before(*user.LockedUntil) {
		return nil, ErrAccountLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.recordFailure(ctx, user, ip)
		return nil, ErrInvalidCredentials
	}

	if user.MFAEnabled {
		if otp == "" {
			return nil, ErrMFARequired
		}
		if !s.totp.Validate(otp, user.MFASecret, s.now()) {
			s.recordFailure(ctx, user, ip)
			return nil, ErrInvalidMFACode
		}
	}

	if err := s.userRepo.RecordLoginSuccess(ctx, user.ID, s.now()); err != nil {
		s.log.Warn("recording login success", zap.Error(err))
	}

	pair, err := s.jwtManager.GenerateTokenPair(user.Claims())
	if err != nil {
		s.log.Error("failed to generate token pair", zap.Error(err))
		return nil, fmt.Errorf("generating tokens: %w", err)
	}

	s.audit.LogAsync(ctx, AuditEntry{
		UserID:       user.ID,
		UserRole:     user.Role,
		Action:       domain.ActionLogin,
		ResourceType: "user",
		ResourceID:   user.ID.String(),
		IPAddress:    ip,
	})

	s.log.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("ip", ip),
	)

	return pair, nil
}

func (s *AuthService) recordFailure(ctx context.Context, user *domain.User, ip string) {
	if err := s.userRepo.RecordLoginFailure(ctx, user.ID, maxFailedAttempts, lockDuration, s.now()); err != nil {
		s.log.Error("recording login failure", zap.Error(err))
	}
	s.log.Warn("failed login attempt",
		zap.String("user_id", user.ID.String()),
		zap.String("ip", ip),
	)
}

// RefreshToken issues a new token pair given a valid refresh token.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// Re-validate user is still active
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	// A password change revokes every refresh token issued before it. iat
	// has second precision.
	if claims.IssuedAt.Before(user.PasswordChangedAt.Truncate(time.Second)) {
		return nil, ErrInvalidCredentials
	}

	return s.jwtManager.GenerateTokenPair(user.Claims())
}

// ChangePassword updates a user's password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return s.userRepo.UpdatePassword(ctx, userID, string(hash), s.now())
}

// EnrollMFA generates a new secret and keeps it until EnableMFA confirms a
// code generated from it.
func (s *AuthService) EnrollMFA(ctx context.Context, userID uuid.UUID) (*auth.TOTPEnrollment, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}

	enrollment, err := s.totp.Generate(user.Email)
	if err != nil {
		return nil, err
	}
	user.MFASecret = enrollment.Secret
	if err := s.userRepo.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("storing mfa secret: %w", err)
	}
	return enrollment, nil
}

func (s *AuthService) EnableMFA(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.MFAEnabled {
		return ErrMFAAlreadyEnabled
	}
	if user.MFASecret == "" {
		return ErrMFANotEnrolled
	}
	if !s.totp.Validate(code, user.MFASecret, s.now()) {
		return ErrInvalidMFACode
	}

	user.MFAEnabled = true
	if err := s.userRepo.Save(ctx, user); err != nil {
		return fmt.Errorf("enabling mfa: %w", err)
	}
	s.log.Info("mfa enabled", zap.String("user_id", user.ID.String()))
	return nil
}

func (s *AuthService) DisableMFA(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MFAEnabled {
		return ErrMFANotEnrolled
	}
	if !s.totp.Validate(code, user.MFASecret, s.now()) {
		return ErrInvalidMFACode
	}

	user.MFAEnabled = false
	user.MFASecret = ""
	if err := s.userRepo.Save(ctx, user); err != nil {
		return fmt.Errorf("disabling mfa: %w", err)
	}
	s.log.Info("mfa disabled", zap.String("user_id", user.ID.String()))
	return nil
}

func (s *AuthService) GetMe(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

func (s *AuthService) UpdateMe(ctx context.Context, userID uuid.UUID, cmd *UpdateMeCommand) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var v validation
	v.check(cmd.FirstName == nil || strings.TrimSpace(*cmd.FirstName) != "", "first_name cannot be empty")
	v.check(cmd.LastName == nil || strings.TrimSpace(*cmd.LastName) != "", "last_name cannot be empty")
	if err := v.err(); err != nil {
		return nil, err
	}

	if cmd.FirstName != nil {
		user.FirstName = strings.TrimSpace(*cmd.FirstName)
	}
	if cmd.LastName != nil {
		user.LastName = strings.TrimSpace(*cmd.LastName)
	}
	if cmd.Phone != nil {
		user.Phone = strings.TrimSpace(*cmd.Phone)
	}

	if err := s.userRepo.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	return user, nil
}
