package session

import (
	"context"

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

func (s *PostgresStore) Create(ctx context.Context, sess *Session) error {
	const query = `
		INSERT INTO buyer_sessions (id, token, fingerprint, ip_address, user_agent, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		sess.ID, sess.Token, sess.Fingerprint, sess.IPAddress, sess.UserAgent,
		sess.CreatedAt, sess.ExpiresAt,
	)
	return err
}

func (s *PostgresStore) GetByToken(ctx context.Context, token string) (*Session, error) {
	const query = `
		SELECT id, token, fingerprint, ip_address, user_agent, created_at, expires_at
		FROM buyer_sessions
		WHERE token = $1`

	return s.scanOne(s.pool.QueryRow(ctx, query, token))
}

func (s *PostgresStore) FindActiveByFingerprint(ctx context.Context, fingerprint string) (*Session, error) {
	const query = `
		SELECT id, token, fingerprint, ip_address, user_agent, created_at, expires_at
		FROM buyer_sessions
		WHERE fingerprint = $1 AND expires_at > now()
		ORDER BY created_at DESC
		LIMIT 1`

	return s.scanOne(s.pool.QueryRow(ctx, query, fingerprint))
}

func (s *PostgresStore) DeleteExpired(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM buyer_sessions WHERE expires_at <= now()`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresStore) scanOne(row rowScanner) (*Session, error) {
	var sess Session
	err := row.Scan(
		&sess.ID, &sess.Token, &sess.Fingerprint, &sess.IPAddress, &sess.UserAgent,
		&sess.CreatedAt, &sess.ExpiresAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}
