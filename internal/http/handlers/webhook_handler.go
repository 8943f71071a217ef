// Webhook HTTP handlers.
//
//   - POST /webhook  (idempotent event ingestion)
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-catalog-cache/internal/http/middleware"
	"github.com/tbourn/go-catalog-cache/internal/services"
)

// WebhookRequest is the JSON payload delivered by event providers.
type WebhookRequest struct {
	// EventID identifies the delivery; repeats within 24h are ignored.
	EventID string `json:"eventId" example:"evt-1"`
	// Data is the opaque event payload.
	Data json.RawMessage `json:"data" swaggertype:"object"`
}

// WebhookAccepted is returned when an event is processed for the first time.
type WebhookAccepted struct {
	Status string `json:"status" example:"success"`
}

// WebhookDuplicate is returned for an event id seen within the window.
type WebhookDuplicate struct {
	Message string `json:"message" example:"Event already processed (Idempotent)"`
}

// ReceiveWebhook godoc
// @ID          receiveWebhook
// @Summary     Ingest an event
// @Description Records the event id and processes the event once. Redelivery of a known id within the retention window is acknowledged with 200 {"message":"Event already processed (Idempotent)"} and is not reprocessed. When the body has no eventId, the Idempotency-Key header is used.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string                   false  "Fallback event id"  example(evt-1)
// @Param       body             body    handlers.WebhookRequest  true   "Event"
//
// @Success     200  {object}  handlers.WebhookAccepted   "Processed (or handlers.WebhookDuplicate on redelivery)"
// @Failure     400  {object}  handlers.ErrorResponse     "Missing or invalid eventId"
// @Failure     500  {object}  handlers.ErrorResponse     "Processing failed"
// @Failure     503  {object}  handlers.ErrorResponse     "Idempotency store unavailable"
// @Router      /webhook [post]
func (h *Handlers) ReceiveWebhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read request body")
		return
	}
	var req WebhookRequest
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	eventID := req.EventID
	if eventID == "" {
		eventID, _ = middleware.GetIdempotencyKey(c)
	}

	adm, err := h.webhooks.Ingest(c.Request.Context(), eventID, req.Data)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrMissingEventID):
		fail(c, http.StatusBadRequest, ErrCodeMissingEventID, "Missing eventId")
		return
	case errors.Is(err, services.ErrInvalidEventID):
		fail(c, http.StatusBadRequest, ErrCodeInvalidEventID, err.Error())
		return
	case errors.Is(err, services.ErrStoreUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeStoreUnavailable, "idempotency store unavailable")
		return
	default:
		fail(c, http.StatusInternalServerError, ErrCodeProcessingFailed, "event processing failed")
		return
	}

	if adm == services.AlreadyProcessed {
		ok(c, http.StatusOK, WebhookDuplicate{Message: "Event already processed (Idempotent)"})
		return
	}
	ok(c, http.StatusOK, WebhookAccepted{Status: "success"})
}
