// Package idempotency implements the check/reserve/finalize protocol the
// ledger engine uses to deduplicate retried requests (spec §4.2). It is
// generalized from the teacher's hard-coded transfer-response handling in
// internal/service/transfer.go and internal/store/postgres.go into a
// reusable registry parameterised over an arbitrary JSON response body.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iamzubin/dodo-ledger/internal/domain"
	"github.com/iamzubin/dodo-ledger/internal/metrics"
)

var (
	// ErrInProgress is returned by Reserve when the key is already pending —
	// another request with the same (business_id, key) is in flight.
	ErrInProgress = errors.New("idempotency key operation in progress")
	// ErrAlreadyCompleted is returned by Reserve when the key already
	// resolved to success; a correct caller would have hit Check first.
	ErrAlreadyCompleted = errors.New("idempotency key already completed")
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting Registry
// methods run either standalone or inside the caller's transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgx.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Registry implements check/reserve/finalize over the idempotency_keys table.
type Registry struct {
	pool *pgxpool.Pool
}

// New builds a Registry bound to the shared pool, used for the fast-path
// Check and for the best-effort out-of-band Fail call.
func New(pool *pgxpool.Pool) *Registry {
	return &Registry{pool: pool}
}

// Check returns the cached response iff a row exists with status = success.
// It is safe to call with the shared pool before a transaction is opened —
// a concurrent Reserve cannot invalidate a row already in `success`.
func (r *Registry) Check(ctx context.Context, businessID uuid.UUID, key string) (json.RawMessage, bool, error) {
	return check(ctx, r.pool, businessID, key)
}

func check(ctx context.Context, q Querier, businessID uuid.UUID, key string) (json.RawMessage, bool, error) {
	var (
		status domain.IdempotencyStatus
		body   json.RawMessage
	)
	err := q.QueryRow(ctx,
		`SELECT status, response_body FROM idempotency_keys WHERE business_id = $1 AND key = $2`,
		businessID, key,
	).Scan(&status, &body)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		metrics.IdempotencyOutcomes.WithLabelValues("new").Inc()
		return nil, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("check idempotency key: %w", err)
	case status == domain.IdempotencySuccess:
		metrics.IdempotencyOutcomes.WithLabelValues("cached").Inc()
		return body, true, nil
	default:
		return nil, false, nil
	}
}

// Reserve ensures a row exists with status = pending for (business_id, key),
// per the single-round-trip algorithm in spec §4.2: an INSERT ... ON
// CONFLICT DO UPDATE that only fires the update when the existing row is
// neither pending nor success. Must run inside the caller's transaction so
// the reservation commits atomically with the ledger mutation it guards.
func (r *Registry) Reserve(ctx context.Context, tx pgx.Tx, businessID uuid.UUID, key string) error {
	tag, err := tx.Exec(ctx,
		`INSERT INTO idempotency_keys (business_id, key, status)
		 VALUES ($1, $2, 'pending')
		 ON CONFLICT (business_id, key) DO UPDATE
		   SET status = 'pending', updated_at = NOW()
		   WHERE idempotency_keys.status NOT IN ('pending', 'success')`,
		businessID, key,
	)
	if err != nil {
		return fmt.Errorf("reserve idempotency key: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows affected: either the row is pending or already succeeded.
	// A follow-up read distinguishes the two conflict causes.
	var status domain.IdempotencyStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM idempotency_keys WHERE business_id = $1 AND key = $2`,
		businessID, key,
	).Scan(&status)
	if err != nil {
		return fmt.Errorf("inspect idempotency key conflict: %w", err)
	}

	if status == domain.IdempotencySuccess {
		metrics.IdempotencyOutcomes.WithLabelValues("conflict").Inc()
		return ErrAlreadyCompleted
	}
	metrics.IdempotencyOutcomes.WithLabelValues("in_progress").Inc()
	return ErrInProgress
}

// Finalize sets the key's terminal status and response body, inside the
// same transaction that committed (or is about to commit) the ledger
// mutation it guards.
func (r *Registry) Finalize(ctx context.Context, tx pgx.Tx, businessID uuid.UUID, key string, responseBody json.RawMessage, success bool) error {
	status := domain.IdempotencyFailed
	if success {
		status = domain.IdempotencySuccess
	}

	_, err := tx.Exec(ctx,
		`UPDATE idempotency_keys SET status = $1, response_body = $2, updated_at = NOW()
		 WHERE business_id = $3 AND key = $4`,
		status, responseBody, businessID, key,
	)
	if err != nil {
		return fmt.Errorf("finalize idempotency key: %w", err)
	}
	return nil
}

// Fail marks a pending key failed out-of-band, on the pool rather than on
// the caller's transaction (spec §4.2, "Failure semantics"). The engine
// calls it before its deferred rollback runs. Errors are deliberately
// swallowed by callers — this is best-effort bookkeeping, not part of the
// critical path.
//
// In practice this UPDATE never matches a row: Reserve's pending status is
// written inside the caller's still-uncommitted transaction, which this
// pool connection cannot see. The rollback that follows discards that
// write, so the key ends up absent (first attempt) or back at its earlier
// "failed" status (retry after a failure); this call never records a
// failure itself. Either way the key can be reserved again by a retry.
func (r *Registry) Fail(ctx context.Context, businessID uuid.UUID, key string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE idempotency_keys SET status = 'failed', updated_at = NOW()
		 WHERE business_id = $1 AND key = $2 AND status = 'pending'`,
		businessID, key,
	)
	if err != nil {
		return fmt.Errorf("mark idempotency key failed: %w", err)
	}
	return nil
}
