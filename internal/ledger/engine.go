// Package ledger implements the transfer/credit/debit state machine (spec
// §4.3): one skeleton shared by all three operations — validate, check the
// idempotency cache, reserve the key, lock accounts in deterministic order,
// apply operation-specific checks, mutate balances, record the transaction,
// fan out webhook events, finalize the key, commit. Grounded directly on
// the teacher's internal/service.TransferService.ProcessTransfer and
// internal/store.LedgerStore.ExecTransfer, generalized from "transfer only"
// to the three operations original_source's accounts.rs exposes.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iamzubin/dodo-ledger/internal/domain"
	"github.com/iamzubin/dodo-ledger/internal/idempotency"
)

// Engine is the ledger core. It holds no in-memory state between requests —
// every balance and every idempotency record lives in the pool (spec §5).
type Engine struct {
	pool *pgxpool.Pool
	idem *idempotency.Registry
}

// New builds an Engine bound to the shared pool and idempotency registry.
func New(pool *pgxpool.Pool, idem *idempotency.Registry) *Engine {
	return &Engine{pool: pool, idem: idem}
}

type accountRow struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	Currency   string
	Balance    int64
}

func lockAccount(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*accountRow, error) {
	var a accountRow
	err := tx.QueryRow(ctx,
		`SELECT id, business_id, currency, balance FROM accounts WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&a.ID, &a.BusinessID, &a.Currency, &a.Balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock account %s: %w", id, err)
	}
	return &a, nil
}

func validateAmount(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func parseAccountID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.UUID{}, ErrInvalidAccountID
	}
	return id, nil
}

// opResult is what an operation-specific closure produces once it has
// locked accounts, run its checks and mutated balances.
type opResult struct {
	response  *domain.LedgerResponse
	eventType string
}

// execute wraps the skeleton shared by Transfer/Credit/Debit: idempotency
// cache check, transaction, key reservation, the caller's op-specific work,
// webhook fan-out, finalize, commit. On any failure after a successful
// reservation it issues the out-of-band Fail update (see Registry.Fail for
// why that update matches no row) and then rolls back; the rollback discards
// the pending reservation, so the key is left absent or at its earlier
// failed status rather than recorded as failed, and a retry with the same
// key reattempts the operation (spec §4.2 "Failure semantics", §7).
func (e *Engine) execute(
	ctx context.Context,
	businessID uuid.UUID,
	idempotencyKey string,
	op func(ctx context.Context, tx pgx.Tx) (*opResult, error),
) (*domain.LedgerResponse, error) {
	if cached, ok, err := e.idem.Check(ctx, businessID, idempotencyKey); err != nil {
		return nil, fmt.Errorf("idempotency check: %w", err)
	} else if ok {
		var resp domain.LedgerResponse
		if err := json.Unmarshal(cached, &resp); err != nil {
			return nil, fmt.Errorf("decode cached response: %w", err)
		}
		resp.Cached = true
		return &resp, nil
	}

	tx, err := e.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := e.idem.Reserve(ctx, tx, businessID, idempotencyKey); err != nil {
		// ErrInProgress / ErrAlreadyCompleted: the key was not ours to
		// fail — a concurrent or prior attempt owns it.
		return nil, err
	}

	result, err := op(ctx, tx)
	if err != nil {
		e.failKey(ctx, businessID, idempotencyKey)
		return nil, err
	}

	if err := e.fanOutWebhooks(ctx, tx, businessID, result.eventType, result.response); err != nil {
		e.failKey(ctx, businessID, idempotencyKey)
		return nil, err
	}

	body, err := json.Marshal(result.response)
	if err != nil {
		e.failKey(ctx, businessID, idempotencyKey)
		return nil, fmt.Errorf("encode response: %w", err)
	}

	if err := e.idem.Finalize(ctx, tx, businessID, idempotencyKey, body, true); err != nil {
		e.failKey(ctx, businessID, idempotencyKey)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		e.failKey(ctx, businessID, idempotencyKey)
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return result.response, nil
}

// failKey is the best-effort out-of-band update described in spec §4.2; its
// own error is not actionable by the caller, so it is discarded here rather
// than returned or logged. The ledger package stays log-free.
func (e *Engine) failKey(ctx context.Context, businessID uuid.UUID, key string) {
	_ = e.idem.Fail(context.WithoutCancel(ctx), businessID, key)
}

// fanOutWebhooks inserts one WebhookEvent per currently-active endpoint of
// the tenant, inside the same transaction as the ledger mutation (I6). The
// endpoint set is read with the transaction's own snapshot, so an endpoint
// registered after this transaction started never sees historical events
// (spec §4.3, "Webhook fan-out").
func (e *Engine) fanOutWebhooks(ctx context.Context, tx pgx.Tx, businessID uuid.UUID, eventType string, payload any) error {
	rows, err := tx.Query(ctx,
		`SELECT id FROM webhook_endpoints WHERE business_id = $1 AND is_active = TRUE`,
		businessID,
	)
	if err != nil {
		return fmt.Errorf("list webhook endpoints: %w", err)
	}
	defer rows.Close()

	var endpointIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan webhook endpoint: %w", err)
		}
		endpointIDs = append(endpointIDs, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate webhook endpoints: %w", err)
	}

	if len(endpointIDs) == 0 {
		return nil
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	batch := &pgx.Batch{}
	for _, id := range endpointIDs {
		batch.Queue(
			`INSERT INTO webhook_events (webhook_endpoint_id, event_type, payload, status, attempts)
			 VALUES ($1, $2, $3, 'pending', 0)`,
			id, eventType, payloadJSON,
		)
	}
	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	for range endpointIDs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert webhook event: %w", err)
		}
	}
	return nil
}

// Transfer moves funds between two accounts of equal currency, debiting the
// caller's from-account and crediting the to-account (spec §4.3).
func (e *Engine) Transfer(ctx context.Context, businessID uuid.UUID, req domain.TransferRequest) (*domain.LedgerResponse, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	fromID, err := parseAccountID(req.FromAccountID)
	if err != nil {
		return nil, err
	}
	toID, err := parseAccountID(req.ToAccountID)
	if err != nil {
		return nil, err
	}
	if fromID == toID {
		return nil, ErrSameAccount
	}

	return e.execute(ctx, businessID, req.IdempotencyKey, func(ctx context.Context, tx pgx.Tx) (*opResult, error) {
		first, second := lockOrder(fromID, toID)
		firstAcc, err := lockAccount(ctx, tx, first)
		if err != nil {
			return nil, err
		}
		secondAcc, err := lockAccount(ctx, tx, second)
		if err != nil {
			return nil, err
		}

		fromAcc, toAcc := firstAcc, secondAcc
		if fromAcc.ID != fromID {
			fromAcc, toAcc = secondAcc, firstAcc
		}

		if fromAcc.BusinessID != businessID {
			return nil, ErrCrossTenant
		}
		if fromAcc.Currency != toAcc.Currency {
			return nil, &CurrencyMismatchError{FromCurrency: fromAcc.Currency, ToCurrency: toAcc.Currency}
		}
		if fromAcc.Balance < req.Amount {
			return nil, &InsufficientBalanceError{Available: fromAcc.Balance, Required: req.Amount}
		}

		newFromBalance := fromAcc.Balance - req.Amount
		newToBalance := toAcc.Balance + req.Amount

		if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1 WHERE id = $2`, newFromBalance, fromAcc.ID); err != nil {
			return nil, fmt.Errorf("debit account: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1 WHERE id = $2`, newToBalance, toAcc.ID); err != nil {
			return nil, fmt.Errorf("credit account: %w", err)
		}

		txnID := uuid.New()
		_, err = tx.Exec(ctx,
			`INSERT INTO transactions (id, business_id, from_account_id, to_account_id, amount, type, status, idempotency_key)
			 VALUES ($1, $2, $3, $4, $5, 'transfer', 'success', $6)`,
			txnID, businessID, fromAcc.ID, toAcc.ID, req.Amount, req.IdempotencyKey,
		)
		if err != nil {
			return nil, fmt.Errorf("insert transaction: %w", err)
		}

		resp := &domain.LedgerResponse{
			TransactionID:  txnID.String(),
			Amount:         req.Amount,
			Currency:       fromAcc.Currency,
			Status:         "success",
			FromAccountID:  fromAcc.ID.String(),
			ToAccountID:    toAcc.ID.String(),
			FromNewBalance: newFromBalance,
			ToNewBalance:   newToBalance,
		}
		return &opResult{response: resp, eventType: "transfer.created"}, nil
	})
}

// CreditDebit applies a single-account credit or debit (spec §4.3).
func (e *Engine) CreditDebit(ctx context.Context, businessID uuid.UUID, req domain.CreditDebitRequest) (*domain.LedgerResponse, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	accountID, err := parseAccountID(req.AccountID)
	if err != nil {
		return nil, err
	}

	var txType domain.TransactionType
	switch req.TransactionType {
	case string(domain.TransactionCredit):
		txType = domain.TransactionCredit
	case string(domain.TransactionDebit):
		txType = domain.TransactionDebit
	default:
		return nil, ErrInvalidTransactionType
	}

	return e.execute(ctx, businessID, req.IdempotencyKey, func(ctx context.Context, tx pgx.Tx) (*opResult, error) {
		acc, err := lockAccount(ctx, tx, accountID)
		if err != nil {
			return nil, err
		}
		if acc.BusinessID != businessID {
			return nil, ErrCrossTenant
		}

		var newBalance int64
		if txType == domain.TransactionCredit {
			newBalance = acc.Balance + req.Amount
		} else {
			if acc.Balance < req.Amount {
				return nil, &InsufficientBalanceError{Available: acc.Balance, Required: req.Amount}
			}
			newBalance = acc.Balance - req.Amount
		}

		if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = $1 WHERE id = $2`, newBalance, acc.ID); err != nil {
			return nil, fmt.Errorf("update account balance: %w", err)
		}

		txnID := uuid.New()
		var fromID, toID *uuid.UUID
		if txType == domain.TransactionCredit {
			toID = &acc.ID
		} else {
			fromID = &acc.ID
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO transactions (id, business_id, from_account_id, to_account_id, amount, type, status, idempotency_key)
			 VALUES ($1, $2, $3, $4, $5, $6, 'success', $7)`,
			txnID, businessID, fromID, toID, req.Amount, txType, req.IdempotencyKey,
		)
		if err != nil {
			return nil, fmt.Errorf("insert transaction: %w", err)
		}

		resp := &domain.LedgerResponse{
			TransactionID: txnID.String(),
			Amount:        req.Amount,
			Currency:      acc.Currency,
			Status:        "success",
			AccountID:     acc.ID.String(),
			NewBalance:    newBalance,
		}
		return &opResult{response: resp, eventType: fmt.Sprintf("%s.created", txType)}, nil
	})
}
