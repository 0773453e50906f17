package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/paygate/pkg/token"
)

// tokenPrefix marks buyer session tokens in logs and storage.
const tokenPrefix = "ps_"

// Config holds session settings.
type Config struct {
	TTL time.Duration `env:"SESSION_TTL" envDefault:"720h"` // TTL is the fixed lifetime of an anonymous session.
}

// Manager issues and resolves buyer sessions.
type Manager struct {
	store Store
	cfg   Config
	log   *slog.Logger
}

// NewManager creates a session manager.
func NewManager(store Store, cfg Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Manager{store: store, cfg: cfg, log: log}
}

// Ensure returns a session for the fingerprint, reusing a non-expired one
// when it exists. Repeat calls with the same fingerprint are idempotent
// until the session expires.
func (m *Manager) Ensure(ctx context.Context, fingerprint, ipAddress, userAgent string) (*Session, error) {
	if fingerprint == "" {
		return nil, ErrInvalidFingerprint
	}

	existing, err := m.store.FindActiveByFingerprint(ctx, fingerprint)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	tok, err := token.New(tokenPrefix)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &Session{
		ID:          uuid.New(),
		Token:       tok,
		Fingerprint: fingerprint,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.cfg.TTL),
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return nil, err
	}

	m.log.InfoContext(ctx, "buyer session created", "session_id", sess.ID)
	return sess, nil
}

// Get resolves a session by token, rejecting expired ones.
func (m *Manager) Get(ctx context.Context, tok string) (*Session, error) {
	sess, err := m.store.GetByToken(ctx, tok)
	if err != nil {
		return nil, err
	}
	if sess.IsExpired() {
		return nil, ErrExpired
	}
	return sess, nil
}
