package purchase

import (
	"time"

	"github.com/google/uuid"
)

// Status is the purchase lifecycle state.
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusPaid           Status = "paid"
	StatusFailed         Status = "failed"
	StatusRefunded       Status = "refunded" // terminal, revokes future access
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingPayment, StatusPaid, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// Purchase records one buyer's payment for one content. The access token
// is minted at creation but stays inert until the purchase is paid.
// At most one paid purchase exists per (content, buyer email); the store
// enforces this with a partial unique index.
type Purchase struct {
	ID               uuid.UUID
	ContentID        uuid.UUID
	BuyerEmail       string
	SessionID        uuid.UUID
	AmountCents      int64
	Currency         string
	Status           Status
	PaymentIntentRef string
	AccessToken      string
	PurchasedAt      *time.Time // set on transition to paid
	ViewCount        int64
	CreatedAt        time.Time
}

// IsPaid reports whether the purchase grants (time-boxed) access.
func (p *Purchase) IsPaid() bool {
	return p != nil && p.Status == StatusPaid
}
