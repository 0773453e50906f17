package entitlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/paygate/pkg/pg"
)

// PostgresStore implements Store over the shared pgx pool. ConsumeAndTrust
// serializes on the purchase row so concurrent verifications for the same
// purchase see a consistent device count.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) IsTrusted(ctx context.Context, purchaseID uuid.UUID, fingerprint string) (bool, error) {
	var trusted bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM trusted_devices WHERE purchase_id = $1 AND fingerprint = $2)`,
		purchaseID, fingerprint,
	).Scan(&trusted)
	return trusted, err
}

func (s *PostgresStore) CountDevices(ctx context.Context, purchaseID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM trusted_devices WHERE purchase_id = $1`, purchaseID,
	).Scan(&count)
	return count, err
}

func (s *PostgresStore) ListDevices(ctx context.Context, purchaseID uuid.UUID) ([]TrustedDevice, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT purchase_id, fingerprint, trusted_at
		 FROM trusted_devices WHERE purchase_id = $1 ORDER BY trusted_at`,
		purchaseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []TrustedDevice
	for rows.Next() {
		var d TrustedDevice
		if err := rows.Scan(&d.PurchaseID, &d.Fingerprint, &d.TrustedAt); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (s *PostgresStore) IssueCode(ctx context.Context, code *VerificationCode) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Invalidate any live code for the same pair before inserting the
	// replacement, so the old digits stop working the moment a new email
	// goes out.
	_, err = tx.Exec(ctx, `
		UPDATE verification_codes SET consumed = true
		WHERE purchase_id = $1 AND fingerprint = $2 AND NOT consumed`,
		code.PurchaseID, code.Fingerprint,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO verification_codes (id, purchase_id, fingerprint, code, issued_at, expires_at, consumed)
		VALUES ($1, $2, $3, $4, $5, $6, false)`,
		code.ID, code.PurchaseID, code.Fingerprint, code.Code, code.IssuedAt, code.ExpiresAt,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) LatestCode(ctx context.Context, purchaseID uuid.UUID, fingerprint string) (*VerificationCode, error) {
	var c VerificationCode
	err := s.pool.QueryRow(ctx, `
		SELECT id, purchase_id, fingerprint, code, issued_at, expires_at, consumed
		FROM verification_codes
		WHERE purchase_id = $1 AND fingerprint = $2 AND NOT consumed
		ORDER BY issued_at DESC
		LIMIT 1`,
		purchaseID, fingerprint,
	).Scan(&c.ID, &c.PurchaseID, &c.Fingerprint, &c.Code, &c.IssuedAt, &c.ExpiresAt, &c.Consumed)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrVerificationCodeMismatch
		}
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) ConsumeAndTrust(ctx context.Context, codeID, purchaseID uuid.UUID, fingerprint string, maxDevices int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Lock the purchase row to serialize cap checks per purchase.
	if _, err := tx.Exec(ctx, `SELECT 1 FROM purchases WHERE id = $1 FOR UPDATE`, purchaseID); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE verification_codes SET consumed = true WHERE id = $1 AND NOT consumed`, codeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVerificationCodeMismatch
	}

	var trusted bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM trusted_devices WHERE purchase_id = $1 AND fingerprint = $2)`,
		purchaseID, fingerprint,
	).Scan(&trusted)
	if err != nil {
		return err
	}
	if trusted {
		return tx.Commit(ctx)
	}

	var count int
	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM trusted_devices WHERE purchase_id = $1`, purchaseID,
	).Scan(&count); err != nil {
		return err
	}
	if count >= maxDevices {
		// Rolling back leaves the code unconsumed; the buyer can retry it
		// on a device that still fits, though with a full set none will.
		return ErrDeviceLimitReached
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO trusted_devices (purchase_id, fingerprint, trusted_at)
		VALUES ($1, $2, now())
		ON CONFLICT (purchase_id, fingerprint) DO NOTHING`,
		purchaseID, fingerprint,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}
