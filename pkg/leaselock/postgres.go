package leaselock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type dbConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresBackend keeps leases in the app_locks table created by the pgx
// store migrations.
type PostgresBackend struct {
	db dbConn
}

// NewPostgres creates a backend on a pool or connection.
func NewPostgres(db dbConn) *PostgresBackend {
	return &PostgresBackend{db: db}
}

func ttlMillis(ttl time.Duration) int64 {
	if ms := ttl.Milliseconds(); ms > 0 {
		return ms
	}
	return (5 * time.Minute).Milliseconds()
}

func (b *PostgresBackend) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	var returnedKey string
	err := b.db.QueryRow(ctx, tryAcquireSQL, key, token, ttlMillis(ttl)).Scan(&returnedKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return returnedKey != "", nil
}

func (b *PostgresBackend) Renew(ctx context.Context, key, token string, ttl time.Duration) error {
	var returnedKey string
	err := b.db.QueryRow(ctx, renewSQL, key, token, ttlMillis(ttl)).Scan(&returnedKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrLost
	}
	return err
}

func (b *PostgresBackend) Release(ctx context.Context, key, token string) error {
	_, err := b.db.Exec(ctx, releaseSQL, key, token)
	return err
}

const tryAcquireSQL = `
INSERT INTO app_locks (lock_key, locked_by, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lock_key) DO UPDATE
SET locked_by  = EXCLUDED.locked_by,
    expires_at = EXCLUDED.expires_at
WHERE app_locks.expires_at < now()
   OR app_locks.locked_by = EXCLUDED.locked_by
RETURNING lock_key;
`

const renewSQL = `
UPDATE app_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lock_key = $1 AND locked_by = $2
RETURNING lock_key;
`

const releaseSQL = `
DELETE FROM app_locks
WHERE lock_key = $1 AND locked_by = $2;
`
