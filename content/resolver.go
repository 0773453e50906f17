package content

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/paygate/storage"
)

// View is the deliverable form of a content: metadata plus per-item signed
// URLs. Views are assembled per request and never cached; the URLs expire.
type View struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Items       []ItemView `json:"items"`
}

// ItemView is a single item with its short-lived download URL.
type ItemView struct {
	Title       string `json:"title"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	URL         string `json:"url"`
}

// Resolver assembles Views for entitled purchases.
type Resolver struct {
	store  Store
	files  storage.SignedURLProvider
	urlTTL time.Duration
	log    *slog.Logger
}

// NewResolver creates a delivery resolver. urlTTL bounds how long each
// signed URL stays valid.
func NewResolver(store Store, files storage.SignedURLProvider, urlTTL time.Duration, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Resolver{store: store, files: files, urlTTL: urlTTL, log: log}
}

// Resolve loads the content and signs a URL per item, preserving item
// order. A signing failure aborts the whole call rather than returning a
// partial view.
func (r *Resolver) Resolve(ctx context.Context, contentID uuid.UUID) (*View, error) {
	c, err := r.store.Get(ctx, contentID)
	if err != nil {
		return nil, err
	}
	items, err := r.store.Items(ctx, contentID)
	if err != nil {
		return nil, err
	}

	view := &View{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Items:       make([]ItemView, 0, len(items)),
	}

	for _, item := range items {
		url, err := r.files.SignedURL(ctx, item.StorageKey, r.urlTTL)
		if err != nil {
			r.log.ErrorContext(ctx, "failed to sign content item url",
				"content_id", contentID, "item_id", item.ID, "error", err)
			return nil, err
		}
		view.Items = append(view.Items, ItemView{
			Title:       item.Title,
			ContentType: item.ContentType,
			SizeBytes:   item.SizeBytes,
			URL:         url,
		})
	}

	return view, nil
}
