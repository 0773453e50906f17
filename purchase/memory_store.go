package purchase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store in memory for tests and local development.
// A single mutex stands in for the database's partial unique index and
// conditional updates, so the same invariants hold under the race detector.
type MemoryStore struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*Purchase
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[uuid.UUID]*Purchase)}
}

func (s *MemoryStore) Create(ctx context.Context, p *Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Status == StatusPaid && s.findPaidLocked(p.ContentID, p.BuyerEmail) != nil {
		return ErrDuplicatePaid
	}
	copied := *p
	copied.BuyerEmail = strings.ToLower(p.BuyerEmail)
	s.byID[p.ID] = &copied
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *MemoryStore) GetByAccessToken(ctx context.Context, accessToken string) (*Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.byID {
		if p.AccessToken == accessToken {
			copied := *p
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindPaid(ctx context.Context, contentID uuid.UUID, buyerEmail string) (*Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p := s.findPaidLocked(contentID, buyerEmail); p != nil {
		copied := *p
		return &copied, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SetPaymentIntent(ctx context.Context, id uuid.UUID, intentRef string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.byID[id]; ok {
		p.PaymentIntentRef = intentRef
	}
	return nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.byID[id]; ok && p.Status == StatusPendingPayment {
		p.Status = StatusFailed
	}
	return nil
}

func (s *MemoryStore) MarkPaid(ctx context.Context, id uuid.UUID, intentRef string, paidAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok || p.Status != StatusPendingPayment {
		return false, nil
	}
	if existing := s.findPaidLocked(p.ContentID, p.BuyerEmail); existing != nil && existing.ID != p.ID {
		return false, ErrDuplicatePaid
	}

	p.Status = StatusPaid
	p.PaymentIntentRef = intentRef
	paid := paidAt
	p.PurchasedAt = &paid
	return true, nil
}

func (s *MemoryStore) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.byID[id]; ok {
		p.ViewCount++
	}
	return nil
}

func (s *MemoryStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purchases []Purchase
	for _, p := range s.byID {
		if p.SessionID == sessionID {
			purchases = append(purchases, *p)
		}
	}
	sort.Slice(purchases, func(i, j int) bool {
		return purchases[i].CreatedAt.After(purchases[j].CreatedAt)
	})
	return purchases, nil
}

func (s *MemoryStore) findPaidLocked(contentID uuid.UUID, buyerEmail string) *Purchase {
	buyerEmail = strings.ToLower(buyerEmail)
	for _, p := range s.byID {
		if p.ContentID == contentID && p.BuyerEmail == buyerEmail && p.Status == StatusPaid {
			return p
		}
	}
	return nil
}
