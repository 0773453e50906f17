package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in memory for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	byToken map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byToken: make(map[string]*Session)}
}

func (s *MemoryStore) Create(ctx context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *sess
	s.byToken[sess.Token] = &copied
	return nil
}

func (s *MemoryStore) GetByToken(ctx context.Context, token string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *sess
	return &copied, nil
}

func (s *MemoryStore) FindActiveByFingerprint(ctx context.Context, fingerprint string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *Session
	now := time.Now()
	for _, sess := range s.byToken {
		if sess.Fingerprint != fingerprint || now.After(sess.ExpiresAt) {
			continue
		}
		if latest == nil || sess.CreatedAt.After(latest.CreatedAt) {
			latest = sess
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *MemoryStore) DeleteExpired(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for token, sess := range s.byToken {
		if now.After(sess.ExpiresAt) {
			delete(s.byToken, token)
		}
	}
	return nil
}
