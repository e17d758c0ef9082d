package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kgstore/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// GraphDBStorage implements store.GraphStorage on PostgreSQL. Referential
// integrity, the confidence range and the conditional edge upsert are all
// enforced by the database, so concurrent writers need no in-process lock.
type GraphDBStorage struct {
	conn    pgxIConn
	closeFn func()
}

// Compile-time check that GraphDBStorage implements store.GraphStorage.
var _ store.GraphStorage = (*GraphDBStorage)(nil)

type GraphDBStorageOption func(*GraphDBStorage)

// WithCloser registers a function run by Close, typically the pool's Close.
func WithCloser(fn func()) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.closeFn = fn
	}
}

// NewGraphDBStorageWithConnection creates a GraphDBStorage on an existing
// connection, pool or transaction. The caller keeps ownership of conn unless
// WithCloser is given.
func NewGraphDBStorageWithConnection(
	conn pgxIConn,
	opts ...GraphDBStorageOption,
) *GraphDBStorage {
	s := &GraphDBStorage{
		conn: conn,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// New connects to databaseURL, applies pending migrations and returns a
// storage that owns the pool.
func New(ctx context.Context, databaseURL string) (*GraphDBStorage, error) {
	if err := Migrate(databaseURL); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewGraphDBStorageWithConnection(pool, WithCloser(pool.Close)), nil
}

// Close releases the connection when the storage owns it.
func (s *GraphDBStorage) Close() error {
	if s.closeFn != nil {
		s.closeFn()
		s.closeFn = nil
	}
	s.conn = nil
	return nil
}

func (s *GraphDBStorage) ready() error {
	if s == nil || s.conn == nil {
		return store.ErrNotInitialized
	}
	return nil
}

// translateErr maps constraint violations onto the store error kinds.
func translateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23503":
			return fmt.Errorf("%w: %s", store.ErrMissingEntity, pgErr.Detail)
		case "23514":
			return fmt.Errorf("%w: %s", store.ErrInvalidConfidence, pgErr.Message)
		}
	}
	return err
}

func (s *GraphDBStorage) Clear(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.conn.Exec(ctx, `TRUNCATE relationships, entities, documents RESTART IDENTITY`)
	return err
}
