package v1

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain/meeting"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/provider/meetings"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MeetingWebhookParser verifies and decodes provider notifications.
// *meetings.Client satisfies it.
type MeetingWebhookParser interface {
	ParseWebhook(body []byte, signature, timestamp string, now time.Time) (*meetings.Webhook, error)
}

type MeetingEventHandler interface {
	HandleMeetingEvent(ctx context.Context, ev *meeting.Event) error
}

type MeetingHandler struct {
	parser MeetingWebhookParser
	events MeetingEventHandler
	log    *zap.Logger
	now    func() time.Time
}

func NewMeetingHandler(parser MeetingWebhookParser, events MeetingEventHandler, log *zap.Logger) *MeetingHandler {
	return &MeetingHandler{parser: parser, events: events, log: log, now: time.Now}
}

// POST /webhooks/meetings
func (h *MeetingHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "unreadable body")
		return
	}

	hook, err := h.parser.ParseWebhook(body, c.GetHeader(meeting.SignatureHeader), c.GetHeader(meeting.TimestampHeader), h.now())
	if err != nil {
		h.log.Warn("meeting webhook rejected", zap.Error(err))
		respondServiceError(c, err)
		return
	}

	// The provider expects the challenge as a bare JSON object.
	if hook.Challenge != nil {
		c.JSON(http.StatusOK, hook.Challenge)
		return
	}

	if err := h.events.HandleMeetingEvent(c.Request.Context(), hook.Event); err != nil {
		h.log.Error("handling meeting event",
			zap.String("event", hook.Event.Type),
			zap.String("meeting_id", hook.Event.MeetingID),
			zap.Error(err),
		)
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
