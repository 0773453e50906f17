package entitlement

import "errors"

var (
	// ErrTokenInvalid indicates an unknown access token or a purchase that
	// is not paid. Terminal for that token.
	ErrTokenInvalid = errors.New("access token invalid")

	// ErrWindowExpired indicates the access window has closed. Terminal
	// for the purchase, regardless of device trust.
	ErrWindowExpired = errors.New("access window expired")

	// ErrDeviceNotTrusted indicates the fingerprint has not completed
	// verification. See NotTrustedError for the verification-path flag.
	ErrDeviceNotTrusted = errors.New("device not trusted")

	// ErrDeviceLimitReached indicates the trusted-device cap is exhausted.
	// Terminal for new devices on this purchase.
	ErrDeviceLimitReached = errors.New("trusted device limit reached")

	// ErrDeviceAlreadyTrusted indicates a verification request for a
	// fingerprint that already holds access.
	ErrDeviceAlreadyTrusted = errors.New("device already trusted")

	// ErrVerificationCodeExpired indicates the code is past its expiry.
	// Recoverable: request a new code.
	ErrVerificationCodeExpired = errors.New("verification code expired")

	// ErrVerificationCodeMismatch indicates a wrong, missing or already
	// consumed code. Recoverable: request a new code.
	ErrVerificationCodeMismatch = errors.New("verification code mismatch")
)

// NotTrustedError denies access for an unverified fingerprint and carries
// whether the device cap still leaves room for a verification path.
type NotTrustedError struct {
	CanAddMoreDevices bool
}

func (e *NotTrustedError) Error() string {
	return ErrDeviceNotTrusted.Error()
}

// Is makes errors.Is(err, ErrDeviceNotTrusted) match.
func (e *NotTrustedError) Is(target error) bool {
	return target == ErrDeviceNotTrusted
}
