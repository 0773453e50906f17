package purchase

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists purchases. Implementations must uphold two invariants:
// at most one paid purchase per (content_id, buyer_email), and the
// pending→paid transition happens at most once per purchase.
type Store interface {
	// Create inserts a new purchase. Returns ErrDuplicatePaid when the
	// paid-uniqueness invariant would be violated.
	Create(ctx context.Context, p *Purchase) error

	// GetByID returns a purchase or ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*Purchase, error)

	// GetByAccessToken resolves a purchase by its access token or
	// ErrNotFound. Token validity beyond existence is the engine's call.
	GetByAccessToken(ctx context.Context, accessToken string) (*Purchase, error)

	// FindPaid returns the paid purchase for (contentID, buyerEmail) or
	// ErrNotFound. Email matching is case-insensitive.
	FindPaid(ctx context.Context, contentID uuid.UUID, buyerEmail string) (*Purchase, error)

	// SetPaymentIntent records the provider intent ref on a pending
	// purchase once the intent is created.
	SetPaymentIntent(ctx context.Context, id uuid.UUID, intentRef string) error

	// MarkFailed transitions a pending purchase to failed. Used when the
	// payment intent could not be opened.
	MarkFailed(ctx context.Context, id uuid.UUID) error

	// MarkPaid transitions a pending purchase to paid, recording the
	// intent ref and purchase time. Returns false when the purchase was
	// not pending (already paid, failed, refunded), ErrDuplicatePaid when
	// another purchase for the same (content, buyer) won the race.
	MarkPaid(ctx context.Context, id uuid.UUID, intentRef string, paidAt time.Time) (bool, error)

	// IncrementViewCount bumps the monotonic view counter by one.
	// Best-effort: a lost increment under a rare race is acceptable.
	IncrementViewCount(ctx context.Context, id uuid.UUID) error

	// ListBySession returns the session's purchases, newest first.
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Purchase, error)
}
