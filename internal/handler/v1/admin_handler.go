package v1

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AdminService interface {
	ListUsers(ctx context.Context, actor domain.Actor, q *domain.ListUsersQuery) (*domain.PagedUsers, error)
	SetUserActive(ctx context.Context, actor domain.Actor, id uuid.UUID, active bool) (*domain.User, error)
	Stats(ctx context.Context, actor domain.Actor) (*service.Stats, error)
}

type AdminHandler struct {
	svc AdminService
}

func NewAdminHandler(svc AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// GET /admin/users?role=&active=&search=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	page, size := pageParams(c)
	q := &domain.ListUsersQuery{
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     page,
		PageSize: size,
	}
	if raw := c.Query("role"); raw != "" {
		role := domain.Role(raw)
		q.Role = &role
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "active must be true or false")
			return
		}
		q.IsActive = &active
	}

	res, err := h.svc.ListUsers(c.Request.Context(), a, q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondList(c, res.Users, res.TotalCount, res.Page, res.PageSize, res.TotalPages)
}

// POST /admin/users/:id/activate
func (h *AdminHandler) Activate(c *gin.Context) {
	h.setActive(c, true)
}

// POST /admin/users/:id/deactivate
func (h *AdminHandler) Deactivate(c *gin.Context) {
	h.setActive(c, false)
}

func (h *AdminHandler) setActive(c *gin.Context, active bool) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	user, err := h.svc.SetUserActive(c.Request.Context(), a, id, active)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, user)
}

// GET /admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	stats, err := h.svc.Stats(c.Request.Context(), a)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, stats)
}
