package purchase

import "errors"

var (
	// ErrNotFound indicates no purchase matched the lookup.
	ErrNotFound = errors.New("purchase not found")

	// ErrDuplicatePaid indicates the paid-purchase uniqueness index
	// rejected a write. Callers translate it into the already-purchased
	// short-circuit; it never reaches clients as a failure.
	ErrDuplicatePaid = errors.New("paid purchase already exists for this content and buyer")

	// ErrPaymentNotConfirmed indicates the provider does not consider the
	// intent succeeded yet. Recoverable: the caller may retry once payment
	// genuinely completes.
	ErrPaymentNotConfirmed = errors.New("payment not confirmed by provider")

	// ErrInvalidEmail indicates a malformed buyer email.
	ErrInvalidEmail = errors.New("invalid buyer email")
)
