package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/paygate/payment"
	"github.com/dmitrymomot/paygate/purchase"
)

// WebhookParser verifies and decodes provider webhook payloads.
type WebhookParser interface {
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*payment.WebhookEvent, error)
}

// maxWebhookBody bounds webhook payload size.
const maxWebhookBody = 1 << 20 // 1MB

// paymentWebhook handles provider notifications. Completed transactions
// are confirmed through the same idempotent path as client confirmation,
// so a webhook racing a client poll is harmless. The provider retries on
// non-2xx, so only verification failures are rejected.
func (a *api) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	event, err := a.webhooks.ParseWebhook(r.Context(), payload, r.Header.Get("Paddle-Signature"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if event.Status != "completed" && event.Status != "paid" {
		// Not a terminal success event; acknowledge and wait for the next.
		writeJSON(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	purchaseID, err := uuid.Parse(event.PurchaseID)
	if err != nil {
		a.log.WarnContext(r.Context(), "webhook without usable purchase id",
			"event_type", event.EventType, "intent_ref", event.IntentRef)
		writeJSON(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	_, err = a.purchases.Confirm(r.Context(), purchaseID, event.IntentRef)
	if err != nil && !errors.Is(err, purchase.ErrNotFound) {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}
