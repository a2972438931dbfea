package webhook

import (
	"net/http"
	"time"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/internal/whatsapp"
	"dispatch_bot_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

const errInvalidRequest = "invalid request body"

// EventSource turns a gateway payload into an inbound event.
type EventSource interface {
	Event(p whatsapp.WebhookPayload, received time.Time) (conversation.Event, bool)
}

// Dispatcher handles inbound events asynchronously.
type Dispatcher interface {
	Dispatch(ev conversation.Event)
}

// Handler handles the gateway webhook.
type Handler struct {
	source     EventSource
	dispatcher Dispatcher
	now        func() time.Time
}

// NewHandler creates a new webhook handler.
func NewHandler(source EventSource, dispatcher Dispatcher) *Handler {
	return &Handler{source: source, dispatcher: dispatcher, now: time.Now}
}

// HandleWhatsApp accepts one inbound notification.
// POST /api/v1/webhook/whatsapp
// Authenticated via X-Webhook-Secret header (set by middleware).
func (h *Handler) HandleWhatsApp(c *gin.Context) {
	var payload whatsapp.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return
	}

	ev, ok := h.source.Event(payload, h.now())
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	h.dispatcher.Dispatch(ev)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "messageId": ev.MessageID})
}
