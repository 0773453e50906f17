package payment

import "context"

// IntentStatus is the normalized state of a payment intent.
type IntentStatus string

const (
	IntentStatusSucceeded IntentStatus = "succeeded"
	IntentStatusPending   IntentStatus = "pending"
	IntentStatusFailed    IntentStatus = "failed"
)

// Intent is a provider-side payment attempt the buyer completes on the
// client. ClientSecret is handed to the client-side checkout; Ref is the
// provider's identifier used for later status checks.
type Intent struct {
	ClientSecret string
	Ref          string
}

// CreateIntentParams carries what the provider needs to open a checkout.
// AmountCents and Currency are pass-through for reconciliation; PriceRef is
// the provider's catalog price identifier for the content.
type CreateIntentParams struct {
	PriceRef    string
	AmountCents int64
	Currency    string
	Metadata    map[string]string
}

// Provider is the payment collaborator contract consumed by the purchase
// service. Implementations wrap a specific provider SDK; tests substitute
// stubs.
type Provider interface {
	// CreateIntent opens a payment attempt for the given amount.
	CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)

	// GetIntentStatus re-checks the intent with the provider. It is the
	// source of truth during purchase confirmation; the client's word is
	// never trusted.
	GetIntentStatus(ctx context.Context, ref string) (IntentStatus, error)
}
