package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/patient"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PatientService interface {
	GetMyProfile(ctx context.Context, actor domain.Actor) (*patient.Patient, error)
	UpdateMyProfile(ctx context.Context, actor domain.Actor, cmd *patient.UpdatePatientCommand) (*patient.Patient, error)
	GetPatient(ctx context.Context, actor domain.Actor, id uuid.UUID) (*patient.Patient, error)
}

type PatientHandler struct {
	svc PatientService
}

func NewPatientHandler(svc PatientService) *PatientHandler {
	return &PatientHandler{svc: svc}
}

type updatePatientRequest struct {
	FirstName         *string                   `json:"first_name"`
	LastName          *string                   `json:"last_name"`
	DateOfBirth       *string                   `json:"date_of_birth"`
	Gender            *patient.Gender           `json:"gender"`
	BloodType         *patient.BloodType        `json:"blood_type"`
	Phone             *string                   `json:"phone"`
	Address           *string                   `json:"address"`
	City              *string                   `json:"city"`
	State             *string                   `json:"state"`
	ZipCode           *string                   `json:"zip_code"`
	Country           *string                   `json:"country"`
	EmergencyContact  *patient.EmergencyContact `json:"emergency_contact"`
	Allergies         *[]string                 `json:"allergies"`
	ChronicConditions *[]string                 `json:"chronic_conditions"`
}

// GET /patients/me
func (h *PatientHandler) GetMe(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	p, err := h.svc.GetMyProfile(c.Request.Context(), a)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

// PUT /patients/me
func (h *PatientHandler) UpdateMe(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req updatePatientRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &patient.UpdatePatientCommand{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Gender:            req.Gender,
		BloodType:         req.BloodType,
		Phone:             req.Phone,
		Address:           req.Address,
		City:              req.City,
		State:             req.State,
		ZipCode:           req.ZipCode,
		Country:           req.Country,
		EmergencyContact:  req.EmergencyContact,
		Allergies:         req.Allergies,
		ChronicConditions: req.ChronicConditions,
	}
	if req.DateOfBirth != nil {
		dob, err := time.Parse(dateLayout, *req.DateOfBirth)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "date_of_birth must be YYYY-MM-DD")
			return
		}
		cmd.DateOfBirth = &dob
	}

	p, err := h.svc.UpdateMyProfile(c.Request.Context(), a, cmd)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

// GET /patients/:id
func (h *PatientHandler) Get(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.GetPatient(c.Request.Context(), a, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}
