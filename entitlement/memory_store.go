package entitlement

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store in memory for tests and local development.
// One mutex covers codes and devices together, which is exactly the
// atomicity ConsumeAndTrust requires.
type MemoryStore struct {
	mu      sync.Mutex
	devices map[uuid.UUID][]TrustedDevice
	codes   map[uuid.UUID]*VerificationCode
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices: make(map[uuid.UUID][]TrustedDevice),
		codes:   make(map[uuid.UUID]*VerificationCode),
	}
}

func (s *MemoryStore) IsTrusted(ctx context.Context, purchaseID uuid.UUID, fingerprint string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isTrustedLocked(purchaseID, fingerprint), nil
}

func (s *MemoryStore) CountDevices(ctx context.Context, purchaseID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices[purchaseID]), nil
}

func (s *MemoryStore) ListDevices(ctx context.Context, purchaseID uuid.UUID) ([]TrustedDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TrustedDevice(nil), s.devices[purchaseID]...), nil
}

func (s *MemoryStore) IssueCode(ctx context.Context, code *VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Issuing invalidates any prior unconsumed code for the same pair.
	for _, existing := range s.codes {
		if existing.PurchaseID == code.PurchaseID &&
			existing.Fingerprint == code.Fingerprint &&
			!existing.Consumed {
			existing.Consumed = true
		}
	}

	copied := *code
	s.codes[code.ID] = &copied
	return nil
}

func (s *MemoryStore) LatestCode(ctx context.Context, purchaseID uuid.UUID, fingerprint string) (*VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var candidates []*VerificationCode
	for _, c := range s.codes {
		if c.PurchaseID == purchaseID && c.Fingerprint == fingerprint && !c.Consumed {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrVerificationCodeMismatch
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].IssuedAt.After(candidates[j].IssuedAt)
	})

	copied := *candidates[0]
	return &copied, nil
}

func (s *MemoryStore) ConsumeAndTrust(ctx context.Context, codeID, purchaseID uuid.UUID, fingerprint string, maxDevices int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.codes[codeID]
	if !ok || code.Consumed {
		return ErrVerificationCodeMismatch
	}

	if s.isTrustedLocked(purchaseID, fingerprint) {
		code.Consumed = true
		return nil
	}
	if len(s.devices[purchaseID]) >= maxDevices {
		// Leave the code unconsumed; the failure is about the cap, not
		// the code.
		return ErrDeviceLimitReached
	}

	code.Consumed = true
	s.devices[purchaseID] = append(s.devices[purchaseID], TrustedDevice{
		PurchaseID:  purchaseID,
		Fingerprint: fingerprint,
		TrustedAt:   time.Now(),
	})
	return nil
}

func (s *MemoryStore) isTrustedLocked(purchaseID uuid.UUID, fingerprint string) bool {
	for _, d := range s.devices[purchaseID] {
		if d.Fingerprint == fingerprint {
			return true
		}
	}
	return false
}
