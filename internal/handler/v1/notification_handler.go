package v1

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/notification"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type NotificationService interface {
	List(ctx context.Context, actor domain.Actor, unreadOnly bool, page, pageSize int) (*notification.PagedNotifications, error)
	MarkRead(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	MarkAllRead(ctx context.Context, actor domain.Actor) (int64, error)
}

type NotificationHandler struct {
	svc NotificationService
}

func NewNotificationHandler(svc NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

type notificationList struct {
	ListResponse[*notification.Notification]
	Unread int64 `json:"unread"`
}

// GET /notifications?unread=true
func (h *NotificationHandler) List(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	page, size := pageParams(c)
	unreadOnly, _ := strconv.ParseBool(c.Query("unread"))

	res, err := h.svc.List(c.Request.Context(), a, unreadOnly, page, size)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	items := res.Notifications
	if items == nil {
		items = []*notification.Notification{}
	}
	c.JSON(http.StatusOK, notificationList{
		ListResponse: ListResponse[*notification.Notification]{
			Data:       items,
			Total:      res.TotalCount,
			Page:       res.Page,
			PageSize:   res.PageSize,
			TotalPages: res.TotalPages,
		},
		Unread: res.Unread,
	})
}

// POST /notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.MarkRead(c.Request.Context(), a, id); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}

	n, err := h.svc.MarkAllRead(c.Request.Context(), a)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"updated": n})
}
