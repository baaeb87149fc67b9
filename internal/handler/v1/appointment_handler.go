package v1

import (
	"context"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/doctor"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AppointmentService interface {
	Book(ctx context.Context, actor domain.Actor, cmd *appointment.BookCommand) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, actor domain.Actor, id uuid.UUID) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, actor domain.Actor, q *appointment.ListAppointmentsQuery) (*appointment.PagedAppointments, error)
	Accept(ctx context.Context, actor domain.Actor, id uuid.UUID) (*appointment.Appointment, error)
	Reject(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*appointment.Appointment, error)
	Cancel(ctx context.Context, actor domain.Actor, id uuid.UUID, reason string) (*appointment.Appointment, error)
	Complete(ctx context.Context, actor domain.Actor, id uuid.UUID) (*appointment.Appointment, error)
	GetMeetingLink(ctx context.Context, actor domain.Actor, id uuid.UUID) (*service.MeetingLink, error)
}

type AppointmentHandler struct {
	svc AppointmentService
}

func NewAppointmentHandler(svc AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{svc: svc}
}

type bookRequest struct {
	DoctorID     uuid.UUID `json:"doctor_id" binding:"required"`
	ScheduledAt  time.Time `json:"scheduled_at" binding:"required"`
	DurationMins int       `json:"duration_minutes"`
	Mode         string    `json:"mode" binding:"required"`
	Reason       string    `json:"reason" binding:"max=2000"`
}

type reasonRequest struct {
	Reason string `json:"reason" binding:"max=2000"`
}

// POST /appointments
func (h *AppointmentHandler) Book(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	var req bookRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.DurationMins == 0 {
		req.DurationMins = doctor.DefaultSlotMinutes
	}

	appt, err := h.svc.Book(c.Request.Context(), a, &appointment.BookCommand{
		DoctorID:     req.DoctorID,
		ScheduledAt:  req.ScheduledAt,
		DurationMins: req.DurationMins,
		Mode:         doctor.ConsultationMode(req.Mode),
		Reason:       req.Reason,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, appt)
}

// GET /appointments
func (h *AppointmentHandler) List(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	page, size := pageParams(c)
	q := &appointment.ListAppointmentsQuery{Page: page, PageSize: size}

	if raw := c.Query("status"); raw != "" {
		st := appointment.Status(raw)
		q.Status = &st
	}
	if raw := c.Query("mode"); raw != "" {
		mode := doctor.ConsultationMode(raw)
		q.Mode = &mode
	}
	if q.DateFrom, ok = parseOptionalDate(c, "from"); !ok {
		return
	}
	if q.DateTo, ok = parseOptionalDate(c, "to"); !ok {
		return
	}
	if q.PatientID, ok = parseOptionalUUID(c, "patient_id"); !ok {
		return
	}
	if q.DoctorID, ok = parseOptionalUUID(c, "doctor_id"); !ok {
		return
	}

	res, err := h.svc.ListAppointments(c.Request.Context(), a, q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, res.Appointments, res.TotalCount, res.Page, res.PageSize, res.TotalPages)
}

// GET /appointments/:id
func (h *AppointmentHandler) Get(c *gin.Context) {
	h.byID(c, h.svc.GetAppointment)
}

// POST /appointments/:id/accept
func (h *AppointmentHandler) Accept(c *gin.Context) {
	h.byID(c, h.svc.Accept)
}

// POST /appointments/:id/complete
func (h *AppointmentHandler) Complete(c *gin.Context) {
	h.byID(c, h.svc.Complete)
}

// POST /appointments/:id/reject
func (h *AppointmentHandler) Reject(c *gin.Context) {
	h.withReason(c, h.svc.Reject)
}

// POST /appointments/:id/cancel
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	h.withReason(c, h.svc.Cancel)
}

// GET /appointments/:id/meeting
func (h *AppointmentHandler) MeetingLink(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	link, err := h.svc.GetMeetingLink(c.Request.Context(), a, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, link)
}

type appointmentFunc func(context.Context, domain.Actor, uuid.UUID) (*appointment.Appointment, error)

func (h *AppointmentHandler) byID(c *gin.Context, fn appointmentFunc) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	appt, err := fn(c.Request.Context(), a, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, appt)
}

func (h *AppointmentHandler) withReason(c *gin.Context, fn func(context.Context, domain.Actor, uuid.UUID, string) (*appointment.Appointment, error)) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req reasonRequest
	// The body is optional for cancellation.
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	appt, err := fn(c.Request.Context(), a, id, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, appt)
}
