package v1

import (
	"context"
	"net/http"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/review"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ReviewService interface {
	Create(ctx context.Context, actor domain.Actor, cmd *service.CreateReviewCommand) (*review.Review, error)
	ListForDoctor(ctx context.Context, q *review.ListQuery) (*review.PagedReviews, error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
}

type ReviewHandler struct {
	svc ReviewService
}

func NewReviewHandler(svc ReviewService) *ReviewHandler {
	return &ReviewHandler{svc: svc}
}

type createReviewRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

// POST /appointments/:id/review
func (h *ReviewHandler) Create(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	var req createReviewRequest
	if !bindJSON(c, &req) {
		return
	}

	rv, err := h.svc.Create(c.Request.Context(), a, &service.CreateReviewCommand{
		AppointmentID: id,
		Rating:        req.Rating,
		Comment:       req.Comment,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, rv)
}

// GET /doctors/:id/reviews
func (h *ReviewHandler) ListForDoctor(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	page, size := pageParams(c)

	res, err := h.svc.ListForDoctor(c.Request.Context(), &review.ListQuery{DoctorID: id, Page: page, PageSize: size})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, res.Reviews, res.TotalCount, res.Page, res.PageSize, res.TotalPages)
}

// DELETE /admin/reviews/:id
func (h *ReviewHandler) Delete(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), a, id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
