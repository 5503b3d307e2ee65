package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/ordersync/backend/internal/application/ingest"
	"github.com/ordersync/backend/internal/domain/pipeline"
)

// signatureHeader and timestampHeader carry the source system's HMAC
// signature material.
const (
	signatureHeader = "x-unleashed-signature"
	timestampHeader = "x-unleashed-timestamp"
)

// WebhookHandler receives source-system notifications
type WebhookHandler struct {
	BaseHandler
	webhooks *ingest.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhooks *ingest.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// Receive handles POST /webhooks/unleashed. The raw body is read before any
// parsing because the signature covers the exact bytes delivered.
func (h *WebhookHandler) Receive(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, "failed to read request body")
		return
	}

	result, err := h.webhooks.Handle(
		c.Request.Context(),
		rawBody,
		c.GetHeader(signatureHeader),
		c.GetHeader(timestampHeader),
	)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrSignatureMismatch):
			h.Unauthorized(c, "signature mismatch")
		case errors.Is(err, pipeline.ErrInvalidPayload):
			h.BadRequest(c, err.Error())
		default:
			h.InternalError(c, err.Error())
		}
		return
	}

	h.Accepted(c, gin.H{"id": result.ID, "deduped": result.Deduped})
}

// RegisterRoutes registers webhook routes
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	webhooks := rg.Group("/webhooks")
	{
		webhooks.POST("/unleashed", h.Receive)
	}
}
