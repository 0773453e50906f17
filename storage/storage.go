package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidConfig = errors.New("invalid storage config")
	ErrUnavailable   = errors.New("storage unavailable")
)

// SignedURLProvider resolves short-lived download URLs for stored objects.
// URLs are minted per request and never persisted; the expiry is the only
// thing standing between a shared URL and the object, so keep it short.
type SignedURLProvider interface {
	SignedURL(ctx context.Context, key string, expiresIn time.Duration) (string, error)
}
