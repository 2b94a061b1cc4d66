package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pentedigital/extrashifty/internal/payout"
	"github.com/pentedigital/extrashifty/internal/processor"
)

// WebhookHandler applies processor-delivered payout status transitions
// (in_transit/paid/failed) exactly once per event id, via the shared
// Dispatcher idempotency store.
type WebhookHandler struct {
	dispatcher *processor.Dispatcher
	payouts    *payout.Service
}

func NewWebhookHandler(dispatcher *processor.Dispatcher, payouts *payout.Service) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher, payouts: payouts}
}

type stripePayoutEventPayload struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID           string `json:"id"`
			FailureMsg   string `json:"failure_message"`
			ArrivalEpoch int64  `json:"arrival_date"`
		} `json:"object"`
	} `json:"data"`
}

// StripeWebhook handles payout-lifecycle events from the processor. Charge
// webhooks are not wired here: Topup resolves the charge result
// synchronously via processor.Port.Charge, so there is nothing left for a
// charge webhook to do in this repo's flow.
func (h *WebhookHandler) StripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "could not read body"})
		return
	}

	eventID, eventType, err := processor.ParseEventID(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	event := processor.WebhookEvent{
		EventID:   eventID,
		EventType: eventType,
		RawBody:   body,
		Received:  time.Now().UTC(),
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), event, h.applyPayoutEvent)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "result": result})
}

func (h *WebhookHandler) applyPayoutEvent(ctx context.Context, event processor.WebhookEvent) (string, error) {
	var payload stripePayoutEventPayload
	if err := json.Unmarshal(event.RawBody, &payload); err != nil {
		return "", err
	}

	p, err := h.payouts.GetByProcessorID(ctx, payload.Data.Object.ID)
	if err != nil {
		return "", err
	}

	switch payload.Type {
	case "payout.paid":
		if _, err := h.payouts.MarkPaid(ctx, p.ID, time.Now().UTC()); err != nil {
			return "", err
		}
		return "paid", nil
	case "payout.failed":
		if _, err := h.payouts.MarkFailed(ctx, p.ID, payload.Data.Object.FailureMsg); err != nil {
			return "", err
		}
		return "failed", nil
	case "payout.in_transit":
		if _, err := h.payouts.MarkInTransit(ctx, p.ID, payload.Data.Object.ID); err != nil {
			return "", err
		}
		return "in_transit", nil
	default:
		return "ignored", nil
	}
}
