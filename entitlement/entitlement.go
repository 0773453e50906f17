package entitlement

import (
	"time"

	"github.com/google/uuid"
)

// Reason explains an eligibility decision.
type Reason string

const (
	ReasonGranted          Reason = "granted"
	ReasonInvalidToken     Reason = "invalid_token"
	ReasonWindowExpired    Reason = "window_expired"
	ReasonDeviceNotTrusted Reason = "device_not_trusted"
)

// Decision is the single result shape for an eligibility check. Exactly
// one of the deny reasons applies; the boolean flags qualify it.
type Decision struct {
	HasAccess              bool      `json:"has_access"`
	Reason                 Reason    `json:"reason"`
	IsExpired              bool      `json:"is_expired,omitempty"`
	NeedsEmailVerification bool      `json:"needs_email_verification,omitempty"`
	CanAddMoreDevices      bool      `json:"can_add_more_devices,omitempty"`
	AccessExpiresAt        time.Time `json:"access_expires_at,omitzero"`
	TimeRemaining          int64     `json:"time_remaining_seconds,omitempty"`
}

// TrustedDevice is a fingerprint that completed email verification for a
// purchase. The set per purchase is bounded by the configured cap.
type TrustedDevice struct {
	PurchaseID  uuid.UUID
	Fingerprint string
	TrustedAt   time.Time
}

// VerificationCode is a short-lived numeric code that promotes a new
// fingerprint into the trusted set. At most one unconsumed, unexpired code
// exists per (purchase, fingerprint); issuing a new one invalidates the
// prior.
type VerificationCode struct {
	ID          uuid.UUID
	PurchaseID  uuid.UUID
	Fingerprint string
	Code        string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Consumed    bool
}

// IsExpired reports whether the code is past its expiry.
func (c *VerificationCode) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}
