package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// contentPreview is the public, pre-purchase view of a content piece. It
// never exposes storage keys or item URLs.
type contentPreview struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	PriceCents  int64  `json:"price_cents"`
	Currency    string `json:"currency"`
	ItemCount   int    `json:"item_count"`
}

func (a *api) getContent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, fmt.Errorf("%w: malformed content id", errInvalidRequest))
		return
	}

	c, err := a.contents.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	items, err := a.contents.Items(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, contentPreview{
		ID:          c.ID.String(),
		Title:       c.Title,
		Description: c.Description,
		PriceCents:  c.PriceCents,
		Currency:    c.Currency,
		ItemCount:   len(items),
	})
}
