package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/service"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AuthService interface {
	RegisterPatient(ctx context.Context, cmd *service.RegisterPatientCommand) (*domain.User, error)
	RegisterDoctor(ctx context.Context, cmd *service.RegisterDoctorCommand) (*domain.User, error)
	Login(ctx context.Context, email, password, otp, ip string) (*domain.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error
	EnrollMFA(ctx context.Context, userID uuid.UUID) (*auth.TOTPEnrollment, error)
	EnableMFA(ctx context.Context, userID uuid.UUID, code string) error
	DisableMFA(ctx context.Context, userID uuid.UUID, code string) error
	GetMe(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	UpdateMe(ctx context.Context, userID uuid.UUID, cmd *service.UpdateMeCommand) (*domain.User, error)
}

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type registerPatientRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender"`
}

type registerDoctorRequest struct {
	Email           string `json:"email" binding:"required"`
	Password        string `json:"password" binding:"required"`
	FirstName       string `json:"first_name" binding:"required"`
	LastName        string `json:"last_name" binding:"required"`
	Phone           string `json:"phone"`
	Specialization  string `json:"specialization" binding:"required"`
	LicenseNumber   string `json:"license_number" binding:"required"`
	ConsultationFee int64  `json:"consultation_fee"`
	Currency        string `json:"currency"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	OTP      string `json:"otp"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type mfaCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

type updateMeRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
}

// POST /auth/register/patient
func (h *AuthHandler) RegisterPatient(c *gin.Context) {
	var req registerPatientRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &service.RegisterPatientCommand{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Gender:    patient.Gender(req.Gender),
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse(dateLayout, req.DateOfBirth)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "date_of_birth must be YYYY-MM-DD")
			return
		}
		cmd.DateOfBirth = &dob
	}

	user, err := h.svc.RegisterPatient(c.Request.Context(), cmd)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, user)
}

// POST /auth/register/doctor
func (h *AuthHandler) RegisterDoctor(c *gin.Context) {
	var req registerDoctorRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.svc.RegisterDoctor(c.Request.Context(), &service.RegisterDoctorCommand{
		Email:           req.Email,
		Password:        req.Password,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		Specialization:  req.Specialization,
		LicenseNumber:   req.LicenseNumber,
		ConsultationFee: req.ConsultationFee,
		Currency:        req.Currency,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, user)
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	tokens, err := h.svc.Login(c.Request.Context(), req.Email, req.Password, req.OTP, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, tokens)
}

// POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}

	tokens, err := h.svc.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "INVALID_TOKEN", "invalid or expired refresh token")
		return
	}
	respondOK(c, tokens)
}

// GET /me
func (h *AuthHandler) GetMe(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	user, err := h.svc.GetMe(c.Request.Context(), a.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, user)
}

// PATCH /me
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req updateMeRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.svc.UpdateMe(c.Request.Context(), a.UserID, &service.UpdateMeCommand{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, user)
}

// POST /auth/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), a.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /auth/mfa/enroll
func (h *AuthHandler) EnrollMFA(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	enrollment, err := h.svc.EnrollMFA(c.Request.Context(), a.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, enrollment)
}

// POST /auth/mfa/enable
func (h *AuthHandler) EnableMFA(c *gin.Context) {
	h.mfaCode(c, h.svc.EnableMFA)
}

// POST /auth/mfa/disable
func (h *AuthHandler) DisableMFA(c *gin.Context) {
	h.mfaCode(c, h.svc.DisableMFA)
}

func (h *AuthHandler) mfaCode(c *gin.Context, apply func(context.Context, uuid.UUID, string) error) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req mfaCodeRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := apply(c.Request.Context(), a.UserID, req.Code); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
