package content

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/paygate/pkg/pg"
)

// PostgresStore implements Store over the shared pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Content, error) {
	const query = `
		SELECT id, creator_id, title, description, price_cents, currency, price_ref, published, created_at
		FROM contents
		WHERE id = $1 AND published`

	var c Content
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.CreatorID, &c.Title, &c.Description,
		&c.PriceCents, &c.Currency, &c.PriceRef, &c.Published, &c.CreatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) Items(ctx context.Context, contentID uuid.UUID) ([]Item, error) {
	const query = `
		SELECT id, content_id, position, title, storage_key, content_type, size_bytes
		FROM content_items
		WHERE content_id = $1
		ORDER BY position`

	rows, err := s.pool.Query(ctx, query, contentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(
			&item.ID, &item.ContentID, &item.Position,
			&item.Title, &item.StorageKey, &item.ContentType, &item.SizeBytes,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
