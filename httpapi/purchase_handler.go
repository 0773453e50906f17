package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/paygate/pkg/binder"
	"github.com/dmitrymomot/paygate/purchase"
)

type createPurchaseRequest struct {
	ContentID    string `json:"content_id"`
	BuyerEmail   string `json:"buyer_email"`
	SessionToken string `json:"session_token"`
}

type createPurchaseResponse struct {
	PurchaseID       string `json:"purchase_id"`
	AlreadyPurchased bool   `json:"already_purchased"`
	ClientSecret     string `json:"client_secret,omitempty"`
	AmountCents      int64  `json:"amount_cents,omitempty"`
	Currency         string `json:"currency,omitempty"`
	AccessToken      string `json:"access_token"`
}

func (a *api) createPurchase(w http.ResponseWriter, r *http.Request) {
	var req createPurchaseRequest
	if err := binder.JSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	contentID, err := uuid.Parse(req.ContentID)
	if err != nil {
		a.writeError(w, r, fmt.Errorf("%w: malformed content id", errInvalidRequest))
		return
	}
	if req.SessionToken == "" {
		a.writeError(w, r, fmt.Errorf("%w: missing session token", errInvalidRequest))
		return
	}

	result, err := a.purchases.Create(r.Context(), purchase.CreateParams{
		ContentID:    contentID,
		BuyerEmail:   req.BuyerEmail,
		SessionToken: req.SessionToken,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyPurchased {
		// The existing entitlement is returned, no new charge was made.
		status = http.StatusOK
	}
	writeJSON(w, status, createPurchaseResponse{
		PurchaseID:       result.PurchaseID.String(),
		AlreadyPurchased: result.AlreadyPurchased,
		ClientSecret:     result.ClientSecret,
		AmountCents:      result.AmountCents,
		Currency:         result.Currency,
		AccessToken:      result.AccessToken,
	})
}

type purchaseStatusResponse struct {
	PurchaseID  string     `json:"purchase_id"`
	Status      string     `json:"status"`
	AccessToken string     `json:"access_token,omitempty"`
	PurchasedAt *time.Time `json:"purchased_at,omitempty"`
}

func (a *api) getPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, fmt.Errorf("%w: malformed purchase id", errInvalidRequest))
		return
	}

	result, err := a.purchases.Verify(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, purchaseStatusResponse{
		PurchaseID:  result.PurchaseID.String(),
		Status:      string(result.Status),
		AccessToken: result.AccessToken,
		PurchasedAt: result.PurchasedAt,
	})
}

type confirmPurchaseRequest struct {
	PurchaseID string `json:"purchase_id"`
	PaymentRef string `json:"payment_ref"`
}

type confirmPurchaseResponse struct {
	PurchaseID  string `json:"purchase_id"`
	Status      string `json:"status"`
	AccessToken string `json:"access_token"`
}

func (a *api) confirmPurchase(w http.ResponseWriter, r *http.Request) {
	var req confirmPurchaseRequest
	if err := binder.JSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	id, err := uuid.Parse(req.PurchaseID)
	if err != nil {
		a.writeError(w, r, fmt.Errorf("%w: malformed purchase id", errInvalidRequest))
		return
	}
	if req.PaymentRef == "" {
		a.writeError(w, r, fmt.Errorf("%w: missing payment ref", errInvalidRequest))
		return
	}

	result, err := a.purchases.Confirm(r.Context(), id, req.PaymentRef)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, confirmPurchaseResponse{
		PurchaseID:  result.PurchaseID.String(),
		Status:      string(result.Status),
		AccessToken: result.AccessToken,
	})
}
