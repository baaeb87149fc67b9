package v1

import (
	"context"
	"io"
	"net/http"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/payment"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxWebhookBytes bounds provider webhook bodies.
const maxWebhookBytes = 1 << 20

type PaymentService interface {
	CreatePayment(ctx context.Context, actor domain.Actor, appointmentID uuid.UUID) (*payment.Payment, error)
	GetForAppointment(ctx context.Context, actor domain.Actor, appointmentID uuid.UUID) (*payment.Payment, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type PaymentHandler struct {
	svc PaymentService
	log *zap.Logger
}

func NewPaymentHandler(svc PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, log: log}
}

// POST /appointments/:id/payment
func (h *PaymentHandler) Create(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.CreatePayment(c.Request.Context(), a, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, p)
}

// GET /appointments/:id/payment
func (h *PaymentHandler) Get(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.GetForAppointment(c.Request.Context(), a, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, p)
}

// POST /webhooks/payments
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "unreadable body")
		return
	}

	if err := h.svc.HandleWebhook(c.Request.Context(), payload, c.GetHeader(payment.SignatureHeader)); err != nil {
		h.log.Warn("payment webhook rejected", zap.Error(err))
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
