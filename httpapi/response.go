package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/paygate/content"
	"github.com/dmitrymomot/paygate/email"
	"github.com/dmitrymomot/paygate/entitlement"
	"github.com/dmitrymomot/paygate/payment"
	"github.com/dmitrymomot/paygate/pkg/binder"
	"github.com/dmitrymomot/paygate/purchase"
	"github.com/dmitrymomot/paygate/session"
	"github.com/dmitrymomot/paygate/storage"
)

// envelope is the JSON response shape. Exactly one of Data and Error is
// set.
type envelope struct {
	Data  any          `json:"data,omitempty"`
	Error *errorDetail `json:"error,omitempty"`
}

// errorDetail carries a stable machine-readable code plus a human message.
type errorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Data: data})
}

func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := mapError(err)
	if status >= http.StatusInternalServerError {
		a.log.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: detail})
}

// mapError translates domain sentinels into HTTP statuses and stable error
// codes. Unknown errors become opaque 500s; internals never leak to the
// client.
func mapError(err error) (int, *errorDetail) {
	var notTrusted *entitlement.NotTrustedError
	if errors.As(err, &notTrusted) {
		return http.StatusForbidden, &errorDetail{
			Code:    "device_not_trusted",
			Message: "this device is not verified for the purchase",
			Details: map[string]any{"can_add_more_devices": notTrusted.CanAddMoreDevices},
		}
	}

	switch {
	case errors.Is(err, binder.ErrInvalidJSON),
		errors.Is(err, binder.ErrMissingContentType),
		errors.Is(err, binder.ErrUnsupportedMediaType),
		errors.Is(err, errInvalidRequest):
		return http.StatusBadRequest, &errorDetail{Code: "invalid_request", Message: err.Error()}
	case errors.Is(err, purchase.ErrInvalidEmail), errors.Is(err, email.ErrInvalidAddress):
		return http.StatusBadRequest, &errorDetail{Code: "invalid_email", Message: "buyer email is not a valid address"}
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
		return http.StatusUnauthorized, &errorDetail{Code: "session_invalid", Message: "session token is unknown or expired"}
	case errors.Is(err, content.ErrNotFound):
		return http.StatusNotFound, &errorDetail{Code: "content_not_found", Message: "content does not exist or is not published"}
	case errors.Is(err, purchase.ErrNotFound):
		return http.StatusNotFound, &errorDetail{Code: "purchase_not_found", Message: "purchase does not exist"}
	case errors.Is(err, purchase.ErrPaymentNotConfirmed):
		return http.StatusPaymentRequired, &errorDetail{Code: "payment_not_confirmed", Message: "payment has not been confirmed by the provider"}
	case errors.Is(err, entitlement.ErrTokenInvalid):
		return http.StatusUnauthorized, &errorDetail{Code: "invalid_token", Message: "access token is unknown or not paid"}
	case errors.Is(err, entitlement.ErrWindowExpired):
		return http.StatusForbidden, &errorDetail{Code: "window_expired", Message: "the access window for this purchase has closed"}
	case errors.Is(err, entitlement.ErrDeviceLimitReached):
		return http.StatusForbidden, &errorDetail{Code: "device_limit_reached", Message: "the trusted device limit for this purchase is reached"}
	case errors.Is(err, entitlement.ErrDeviceAlreadyTrusted):
		return http.StatusConflict, &errorDetail{Code: "device_already_trusted", Message: "this device is already verified"}
	case errors.Is(err, entitlement.ErrVerificationCodeExpired):
		return http.StatusGone, &errorDetail{Code: "verification_code_expired", Message: "the verification code has expired, request a new one"}
	case errors.Is(err, entitlement.ErrVerificationCodeMismatch):
		return http.StatusUnauthorized, &errorDetail{Code: "verification_code_mismatch", Message: "the verification code is wrong or already used"}
	case errors.Is(err, payment.ErrWebhookVerificationFailed):
		return http.StatusUnauthorized, &errorDetail{Code: "webhook_verification_failed", Message: "webhook signature verification failed"}
	case errors.Is(err, storage.ErrUnavailable):
		return http.StatusServiceUnavailable, &errorDetail{Code: "storage_unavailable", Message: "content storage is temporarily unavailable"}
	default:
		return http.StatusInternalServerError, &errorDetail{Code: "internal_error", Message: "internal server error"}
	}
}

// discardLogger is the fallback when no logger is injected.
var discardLogger = slog.New(slog.DiscardHandler)
