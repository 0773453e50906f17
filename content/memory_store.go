package content

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore implements Store in memory for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	contents map[uuid.UUID]Content
	items    map[uuid.UUID][]Item
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contents: make(map[uuid.UUID]Content),
		items:    make(map[uuid.UUID][]Item),
	}
}

// Put stores a content with its items, replacing any previous version.
func (s *MemoryStore) Put(c Content, items ...Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contents[c.ID] = c
	sorted := append([]Item(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })
	s.items[c.ID] = sorted
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contents[id]
	if !ok || !c.Published {
		return nil, ErrNotFound
	}
	out := c
	return &out, nil
}

func (s *MemoryStore) Items(ctx context.Context, contentID uuid.UUID) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Item(nil), s.items[contentID]...), nil
}
