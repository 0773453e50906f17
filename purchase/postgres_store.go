package purchase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/paygate/pkg/pg"
)

const purchaseColumns = `id, content_id, buyer_email, session_id, amount_cents, currency,
	status, payment_intent_ref, access_token, purchased_at, view_count, created_at`

// PostgresStore implements Store over the shared pgx pool. The
// paid-uniqueness invariant lives in a partial unique index on
// (content_id, buyer_email) WHERE status = 'paid', so concurrent writers
// are serialized by the database, not by application locks.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, p *Purchase) error {
	const query = `
		INSERT INTO purchases (id, content_id, buyer_email, session_id, amount_cents, currency,
			status, payment_intent_ref, access_token, view_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.ContentID, strings.ToLower(p.BuyerEmail), p.SessionID,
		p.AmountCents, p.Currency, p.Status, p.PaymentIntentRef,
		p.AccessToken, p.ViewCount, p.CreatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return ErrDuplicatePaid
	}
	return err
}

func (s *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	return s.scanOne(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id)
}

func (s *PostgresStore) GetByAccessToken(ctx context.Context, accessToken string) (*Purchase, error) {
	return s.scanOne(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE access_token = $1`, accessToken)
}

func (s *PostgresStore) FindPaid(ctx context.Context, contentID uuid.UUID, buyerEmail string) (*Purchase, error) {
	return s.scanOne(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE content_id = $1 AND lower(buyer_email) = $2 AND status = 'paid'`,
		contentID, strings.ToLower(buyerEmail),
	)
}

func (s *PostgresStore) SetPaymentIntent(ctx context.Context, id uuid.UUID, intentRef string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE purchases SET payment_intent_ref = $2 WHERE id = $1`, id, intentRef)
	return err
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE purchases SET status = 'failed' WHERE id = $1 AND status = 'pending_payment'`, id)
	return err
}

// MarkPaid performs the pending→paid transition as a single conditional
// update. The WHERE clause makes the transition happen at most once; the
// partial unique index rejects a second paid purchase for the same buyer
// and content, which surfaces as ErrDuplicatePaid.
func (s *PostgresStore) MarkPaid(ctx context.Context, id uuid.UUID, intentRef string, paidAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE purchases
		SET status = 'paid', payment_intent_ref = $2, purchased_at = $3
		WHERE id = $1 AND status = 'pending_payment'`,
		id, intentRef, paidAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return false, ErrDuplicatePaid
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE purchases SET view_count = view_count + 1 WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Purchase, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE session_id = $1 ORDER BY created_at DESC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []Purchase
	for rows.Next() {
		var p Purchase
		if err := scanPurchase(rows.Scan, &p); err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func (s *PostgresStore) scanOne(ctx context.Context, query string, args ...any) (*Purchase, error) {
	var p Purchase
	err := scanPurchase(s.pool.QueryRow(ctx, query, args...).Scan, &p)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanPurchase(scan func(dest ...any) error, p *Purchase) error {
	return scan(
		&p.ID, &p.ContentID, &p.BuyerEmail, &p.SessionID,
		&p.AmountCents, &p.Currency, &p.Status, &p.PaymentIntentRef,
		&p.AccessToken, &p.PurchasedAt, &p.ViewCount, &p.CreatedAt,
	)
}
