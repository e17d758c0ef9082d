// Package backend opens the configured graph storage and wires the services
// shared by the server, the worker and kgctl.
package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/kgstore/internal/util"
	"github.com/OFFIS-RIT/kgstore/pkg/graph"
	"github.com/OFFIS-RIT/kgstore/pkg/leaselock"
	"github.com/OFFIS-RIT/kgstore/pkg/logger"
	"github.com/OFFIS-RIT/kgstore/pkg/store"
	"github.com/OFFIS-RIT/kgstore/pkg/store/memory"
	pgxstore "github.com/OFFIS-RIT/kgstore/pkg/store/pgx"
	"github.com/OFFIS-RIT/kgstore/pkg/store/sqlite"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	KindPostgres = "postgres"
	KindSQLite   = "sqlite"
	KindMemory   = "memory"
)

type Config struct {
	Kind        string
	DatabaseURL string
	SQLitePath  string
}

func ConfigFromEnv() Config {
	return Config{
		Kind:        strings.ToLower(util.GetEnvString("DB_BACKEND", KindPostgres)),
		DatabaseURL: util.GetEnv("DATABASE_URL"),
		SQLitePath:  util.GetEnvString("SQLITE_PATH", "kgstore.db"),
	}
}

// Backend is an open graph together with the lock client that serializes
// writers on the same storage.
type Backend struct {
	Kind  string
	Graph *graph.Graph
	Locks *leaselock.Client

	closeFn func()
}

// Open connects the storage selected by cfg.Kind. Postgres migrations are
// applied before the pool is opened.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	var (
		storage store.GraphStorage
		locks   *leaselock.Client
		closeFn func()
	)

	switch cfg.Kind {
	case KindPostgres, "":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the %s backend", KindPostgres)
		}
		pool, err := openPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		storage = pgxstore.NewGraphDBStorageWithConnection(pool)
		locks = leaselock.New(leaselock.NewPostgres(pool))
		closeFn = pool.Close
		cfg.Kind = KindPostgres
	case KindSQLite:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		storage = s
		locks = leaselock.New(leaselock.NewLocal())
	case KindMemory:
		storage = memory.New()
		locks = leaselock.New(leaselock.NewLocal())
	default:
		return nil, fmt.Errorf("unknown DB_BACKEND %q", cfg.Kind)
	}

	logger.Info("[Backend] Opened graph storage", "backend", cfg.Kind)
	return &Backend{
		Kind:    cfg.Kind,
		Graph:   graph.New(storage),
		Locks:   locks,
		closeFn: closeFn,
	}, nil
}

func openPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	err := util.RetryErrWithContext(ctx, 5, func(context.Context) error {
		return pgxstore.Migrate(databaseURL)
	})
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	_, err = util.RetryWithBackoff(ctx, 5, time.Second, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, pool.Ping(ctx)
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func (b *Backend) Close() error {
	err := b.Graph.Close()
	if b.closeFn != nil {
		b.closeFn()
		b.closeFn = nil
	}
	return err
}
