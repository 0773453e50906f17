package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/paygate/pkg/binder"
	"github.com/dmitrymomot/paygate/pkg/clientip"
)

type createSessionRequest struct {
	Fingerprint string `json:"fingerprint,omitempty"`
}

type sessionResponse struct {
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (a *api) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	// The body is optional: a bare POST falls back to the server-derived
	// fingerprint.
	if r.ContentLength > 0 {
		if err := binder.JSON(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
	}

	sess, err := a.sessions.Ensure(r.Context(),
		deviceFingerprint(r, req.Fingerprint), clientip.GetIP(r), r.UserAgent())
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		SessionToken: sess.Token,
		ExpiresAt:    sess.ExpiresAt,
	})
}

type sessionPurchaseView struct {
	PurchaseID  string     `json:"purchase_id"`
	ContentID   string     `json:"content_id"`
	Status      string     `json:"status"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	AccessToken string     `json:"access_token,omitempty"`
	PurchasedAt *time.Time `json:"purchased_at,omitempty"`
}

func (a *api) listSessionPurchases(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")
	if tok == "" {
		a.writeError(w, r, fmt.Errorf("%w: missing session token", errInvalidRequest))
		return
	}

	purchases, err := a.purchases.ListBySession(r.Context(), tok)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	views := make([]sessionPurchaseView, 0, len(purchases))
	for _, p := range purchases {
		v := sessionPurchaseView{
			PurchaseID:  p.ID.String(),
			ContentID:   p.ContentID.String(),
			Status:      string(p.Status),
			AmountCents: p.AmountCents,
			Currency:    p.Currency,
			PurchasedAt: p.PurchasedAt,
		}
		if p.IsPaid() {
			v.AccessToken = p.AccessToken
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}
