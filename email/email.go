package email

import (
	"context"
	"regexp"
	"time"
)

// Receipt is the purchase summary included in a confirmation email.
type Receipt struct {
	ContentTitle string
	AmountCents  int64
	Currency     string
	PurchasedAt  time.Time
	AccessWindow time.Duration
}

// Sender is the email collaborator contract. The core calls it
// synchronously; failures surface as errors rather than being retried.
type Sender interface {
	// SendVerificationCode delivers a device verification code along with
	// how long it stays valid.
	SendVerificationCode(ctx context.Context, to, code string, expiresIn time.Duration) error

	// SendPurchaseConfirmation delivers a purchase receipt.
	SendPurchaseConfirmation(ctx context.Context, to string, receipt Receipt) error
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidAddress reports whether s looks like a deliverable email address.
// Shared by the senders and by request validation at the boundary.
func ValidAddress(s string) bool {
	return emailRegex.MatchString(s)
}
