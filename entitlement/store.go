package entitlement

import (
	"context"

	"github.com/google/uuid"
)

// Store persists trusted devices and verification codes. Implementations
// must make ConsumeAndTrust atomic: the cap check and the insert happen in
// one step so concurrent verifications cannot push the set over the cap.
type Store interface {
	// IsTrusted reports whether the fingerprint is in the purchase's
	// trusted set.
	IsTrusted(ctx context.Context, purchaseID uuid.UUID, fingerprint string) (bool, error)

	// CountDevices returns the size of the purchase's trusted set.
	CountDevices(ctx context.Context, purchaseID uuid.UUID) (int, error)

	// ListDevices returns the trusted set ordered by TrustedAt.
	ListDevices(ctx context.Context, purchaseID uuid.UUID) ([]TrustedDevice, error)

	// IssueCode stores a new code, invalidating any prior unconsumed code
	// for the same (purchase, fingerprint).
	IssueCode(ctx context.Context, code *VerificationCode) error

	// LatestCode returns the most recent unconsumed code for
	// (purchase, fingerprint), or ErrVerificationCodeMismatch when none
	// exists.
	LatestCode(ctx context.Context, purchaseID uuid.UUID, fingerprint string) (*VerificationCode, error)

	// ConsumeAndTrust atomically consumes the code and inserts the
	// fingerprint into the trusted set if, at the moment of insertion, the
	// set still has room under maxDevices. Returns
	// ErrVerificationCodeMismatch when the code was already consumed and
	// ErrDeviceLimitReached when a concurrent verification exhausted the
	// cap first (the code is left unconsumed in that case).
	ConsumeAndTrust(ctx context.Context, codeID, purchaseID uuid.UUID, fingerprint string, maxDevices int) error
}
