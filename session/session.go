package session

import (
	"time"

	"github.com/google/uuid"
)

// Session identifies a recurring anonymous buyer across requests. It is a
// convenience identity, not a security boundary: content access is gated by
// purchase access tokens, never by the session alone.
type Session struct {
	ID          uuid.UUID `json:"id"`
	Token       string    `json:"token"`
	Fingerprint string    `json:"fingerprint"`
	IPAddress   string    `json:"ip_address"`
	UserAgent   string    `json:"user_agent"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// IsExpired reports whether the session is past its TTL.
func (s *Session) IsExpired() bool {
	return s != nil && time.Now().After(s.ExpiresAt)
}
