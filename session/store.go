package session

import "context"

// Store persists buyer sessions.
type Store interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByToken retrieves a session by its opaque token.
	// Returns ErrNotFound when no session matches.
	GetByToken(ctx context.Context, token string) (*Session, error)

	// FindActiveByFingerprint returns the most recent non-expired session
	// for a fingerprint, or ErrNotFound.
	FindActiveByFingerprint(ctx context.Context, fingerprint string) (*Session, error)

	// DeleteExpired removes sessions past their TTL. Housekeeping only.
	DeleteExpired(ctx context.Context) error
}
