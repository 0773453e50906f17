package content

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("content not found")

// Content is a purchasable piece of paid content. Creation and moderation
// happen elsewhere; this service only reads it.
type Content struct {
	ID          uuid.UUID
	CreatorID   uuid.UUID
	Title       string
	Description string
	PriceCents  int64
	Currency    string
	PriceRef    string // payment provider's catalog price ID
	Published   bool
	CreatedAt   time.Time
}

// Item is one deliverable file within a content, ordered by Position.
type Item struct {
	ID          uuid.UUID
	ContentID   uuid.UUID
	Position    int
	Title       string
	StorageKey  string
	ContentType string
	SizeBytes   int64
}

// Store reads content and its items. Both methods return ErrNotFound for
// unknown or unpublished content.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*Content, error)
	Items(ctx context.Context, contentID uuid.UUID) ([]Item, error)
}
