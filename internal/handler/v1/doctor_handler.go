package v1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/telecare/pkg/geo"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type DoctorService interface {
	GetDoctor(ctx context.Context, actor domain.Actor, id uuid.UUID) (*doctor.Doctor, error)
	UpdateProfile(ctx context.Context, actor domain.Actor, cmd *doctor.UpdateProfileCommand) (*doctor.Doctor, error)
	SetAvailability(ctx context.Context, actor domain.Actor, windows []doctor.Window, timezone *string) (*doctor.Doctor, error)
	AvailableSlots(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]doctor.Interval, error)
	SearchDoctors(ctx context.Context, q *doctor.SearchQuery) (*doctor.PagedResults, error)
	ListPending(ctx context.Context, actor domain.Actor, q *doctor.ListPendingQuery) (*doctor.PagedDoctors, error)
	SetVerified(ctx context.Context, actor domain.Actor, id uuid.UUID, verified bool) (*doctor.Doctor, error)
}

type DoctorHandler struct {
	svc DoctorService
}

func NewDoctorHandler(svc DoctorService) *DoctorHandler {
	return &DoctorHandler{svc: svc}
}

type updateProfileRequest struct {
	FirstName       *string   `json:"first_name"`
	LastName        *string   `json:"last_name"`
	Specialization  *string   `json:"specialization"`
	Qualifications  *[]string `json:"qualifications"`
	Languages       *[]string `json:"languages"`
	YearsExperience *int      `json:"years_experience" binding:"omitempty,min=0,max=80"`
	Bio             *string   `json:"bio"`
	ConsultationFee *int64    `json:"consultation_fee"`
	OffersOnline    *bool     `json:"offers_online"`
	OffersInPerson  *bool     `json:"offers_in_person"`
	ClinicAddress   *string   `json:"clinic_address"`
	City            *string   `json:"city"`
	Country         *string   `json:"country"`
	SlotMinutes     *int      `json:"slot_minutes"`
}

type availabilityRequest struct {
	Windows  []doctor.Window `json:"windows"`
	Timezone *string         `json:"timezone"`
}

type slotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// GET /doctors
func (h *DoctorHandler) Search(c *gin.Context) {
	page, size := pageParams(c)
	q := &doctor.SearchQuery{
		Name:           strings.TrimSpace(c.Query("name")),
		Specialization: strings.TrimSpace(c.Query("specialization")),
		City:           strings.TrimSpace(c.Query("city")),
		Language:       strings.TrimSpace(c.Query("language")),
		SortBy:         doctor.SortField(c.Query("sort")),
		Page:           page,
		PageSize:       size,
	}
	if raw := c.Query("mode"); raw != "" {
		mode := doctor.ConsultationMode(raw)
		q.Mode = &mode
	}

	var ok bool
	if q.MinFee, ok = parseOptionalInt64(c, "min_fee"); !ok {
		return
	}
	if q.MaxFee, ok = parseOptionalInt64(c, "max_fee"); !ok {
		return
	}
	if q.MinRating, ok = parseOptionalFloat(c, "min_rating"); !ok {
		return
	}
	if q.MaxDistanceKm, ok = parseOptionalFloat(c, "max_distance_km"); !ok {
		return
	}
	lat, ok := parseOptionalFloat(c, "lat")
	if !ok {
		return
	}
	lng, ok := parseOptionalFloat(c, "lng")
	if !ok {
		return
	}
	switch {
	case lat != nil && lng != nil:
		q.Origin = &geo.Point{Lat: *lat, Lng: *lng}
	case lat != nil || lng != nil:
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "lat and lng must be given together")
		return
	}

	res, err := h.svc.SearchDoctors(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, res.Results, res.TotalCount, res.Page, res.PageSize, res.TotalPages)
}

// GET /doctors/:id
func (h *DoctorHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	// Anonymous callers get the zero actor and see verified doctors only.
	a, _ := middleware.GetActor(c)

	d, err := h.svc.GetDoctor(c.Request.Context(), a, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, d)
}

// GET /doctors/:id/slots?date=YYYY-MM-DD
func (h *DoctorHandler) Slots(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	day, err := time.Parse(dateLayout, c.Query("date"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "date is required as YYYY-MM-DD")
		return
	}

	slots, err := h.svc.AvailableSlots(c.Request.Context(), id, day)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	out := make([]slotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotResponse{Start: s.Start, End: s.End})
	}
	respondOK(c, out)
}

// PUT /doctors/me/profile
func (h *DoctorHandler) UpdateProfile(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req updateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	d, err := h.svc.UpdateProfile(c.Request.Context(), a, &doctor.UpdateProfileCommand{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Specialization:  req.Specialization,
		Qualifications:  req.Qualifications,
		Languages:       req.Languages,
		YearsExperience: req.YearsExperience,
		Bio:             req.Bio,
		ConsultationFee: req.ConsultationFee,
		OffersOnline:    req.OffersOnline,
		OffersInPerson:  req.OffersInPerson,
		ClinicAddress:   req.ClinicAddress,
		City:            req.City,
		Country:         req.Country,
		SlotMinutes:     req.SlotMinutes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, d)
}

// PUT /doctors/me/availability
func (h *DoctorHandler) SetAvailability(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req availabilityRequest
	if !bindJSON(c, &req) {
		return
	}

	d, err := h.svc.SetAvailability(c.Request.Context(), a, req.Windows, req.Timezone)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, d)
}

// GET /admin/doctors/pending
func (h *DoctorHandler) ListPending(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	page, size := pageParams(c)

	res, err := h.svc.ListPending(c.Request.Context(), a, &doctor.ListPendingQuery{Page: page, PageSize: size})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, res.Doctors, res.TotalCount, res.Page, res.PageSize, res.TotalPages)
}

// POST /admin/doctors/:id/verify
func (h *DoctorHandler) Verify(c *gin.Context) {
	h.setVerified(c, true)
}

// POST /admin/doctors/:id/unverify
func (h *DoctorHandler) Unverify(c *gin.Context) {
	h.setVerified(c, false)
}

func (h *DoctorHandler) setVerified(c *gin.Context, verified bool) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	d, err := h.svc.SetVerified(c.Request.Context(), a, id, verified)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, d)
}
