// Package store owns the Postgres connection pool and the schema that
// every other package reads and writes through. It holds no ledger
// business logic of its own — that lives in internal/ledger,
// internal/idempotency and internal/webhook, each taking a *pgxpool.Pool
// (or a pgx.Tx borrowed from one) as a parameter, per the teacher's own
// store/service split.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a bounded connection pool, the way the teacher's
// cmd/api/main.go calls pgxpool.New directly, generalized to take the
// configured max-connections instead of the driver default.
func NewPool(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
