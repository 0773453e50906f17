package httpapi

import (
	"fmt"
	"net/http"

	"github.com/dmitrymomot/paygate/pkg/binder"
)

type accessRequest struct {
	AccessToken string `json:"access_token"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

func (a *api) access(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := binder.JSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.AccessToken == "" {
		a.writeError(w, r, fmt.Errorf("%w: missing access token", errInvalidRequest))
		return
	}

	view, err := a.entitlements.Access(r.Context(), req.AccessToken, deviceFingerprint(r, req.Fingerprint))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *api) checkEligibility(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := binder.JSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.AccessToken == "" {
		a.writeError(w, r, fmt.Errorf("%w: missing access token", errInvalidRequest))
		return
	}

	// Eligibility is a query, not a gate: every outcome is a 200 with the
	// decision encoded in the body.
	decision, err := a.entitlements.CheckEligibility(r.Context(), req.AccessToken, deviceFingerprint(r, req.Fingerprint))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

type requestDeviceCodeRequest struct {
	AccessToken string `json:"access_token"`
	Email       string `json:"email"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

func (a *api) requestDeviceCode(w http.ResponseWriter, r *http.Request) {
	var req requestDeviceCodeRequest
	if err := binder.JSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.AccessToken == "" {
		a.writeError(w, r, fmt.Errorf("%w: missing access token", errInvalidRequest))
		return
	}

	err := a.entitlements.RequestDeviceVerification(r.Context(),
		req.AccessToken, deviceFingerprint(r, req.Fingerprint), req.Email)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"sent": true})
}

type verifyDeviceRequest struct {
	AccessToken string `json:"access_token"`
	Code        string `json:"code"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

func (a *api) verifyDevice(w http.ResponseWriter, r *http.Request) {
	var req verifyDeviceRequest
	if err := binder.JSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.AccessToken == "" || req.Code == "" {
		a.writeError(w, r, fmt.Errorf("%w: missing access token or code", errInvalidRequest))
		return
	}

	err := a.entitlements.VerifyDeviceCode(r.Context(),
		req.AccessToken, deviceFingerprint(r, req.Fingerprint), req.Code)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"device_trusted": true})
}
