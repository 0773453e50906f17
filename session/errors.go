package session

import "errors"

var (
	// ErrNotFound indicates no session matched the token.
	ErrNotFound = errors.New("session not found")

	// ErrExpired indicates the session exists but is past its TTL.
	ErrExpired = errors.New("session expired")

	// ErrInvalidFingerprint indicates a missing or malformed fingerprint.
	ErrInvalidFingerprint = errors.New("invalid fingerprint")
)
