package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TransactionType enumerates the three ledger operations the engine supports.
type TransactionType string

const (
	TransactionTransfer TransactionType = "transfer"
	TransactionCredit   TransactionType = "credit"
	TransactionDebit    TransactionType = "debit"
)

// TransactionStatus mirrors the Postgres transaction_status enum.
type TransactionStatus string

const (
	TransactionSuccess TransactionStatus = "success"
	TransactionFailed  TransactionStatus = "failed"
)

// IdempotencyStatus mirrors the Postgres idempotency_status enum.
type IdempotencyStatus string

const (
	IdempotencyPending IdempotencyStatus = "pending"
	IdempotencySuccess IdempotencyStatus = "success"
	IdempotencyFailed  IdempotencyStatus = "failed"
)

// WebhookEventStatus mirrors the Postgres webhook_event_status enum.
type WebhookEventStatus string

const (
	WebhookEventPending   WebhookEventStatus = "pending"
	WebhookEventDelivered WebhookEventStatus = "delivered"
	WebhookEventFailed    WebhookEventStatus = "failed"
)

// Business is the tenant owning accounts, API keys and webhook endpoints.
type Business struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// ApiKey is a credential tenants present as the Authorization header.
type ApiKey struct {
	ID         uuid.UUID `json:"id"`
	BusinessID uuid.UUID `json:"business_id"`
	KeyHash    string    `json:"-"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Account is a monetary account owned by a single business.
type Account struct {
	ID         uuid.UUID `json:"id"`
	BusinessID uuid.UUID `json:"business_id"`
	Currency   string    `json:"currency"`
	Balance    int64     `json:"balance"`
	CreatedAt  time.Time `json:"created_at"`
}

// Transaction is an append-only record of a completed ledger movement.
type Transaction struct {
	ID             uuid.UUID         `json:"id"`
	BusinessID     uuid.UUID         `json:"business_id"`
	FromAccountID  *uuid.UUID        `json:"from_account_id,omitempty"`
	ToAccountID    *uuid.UUID        `json:"to_account_id,omitempty"`
	Amount         int64             `json:"amount"`
	Type           TransactionType   `json:"type"`
	Status         TransactionStatus `json:"status"`
	IdempotencyKey string            `json:"idempotency_key"`
	CreatedAt      time.Time         `json:"created_at"`
}

// IdempotencyKey is the dedup record the idempotency registry manages.
type IdempotencyKey struct {
	BusinessID   uuid.UUID
	Key          string
	Status       IdempotencyStatus
	ResponseBody json.RawMessage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WebhookEndpoint is a tenant-registered URL that receives ledger events.
type WebhookEndpoint struct {
	ID         uuid.UUID `json:"id"`
	BusinessID uuid.UUID `json:"business_id"`
	URL        string    `json:"url"`
	Secret     string    `json:"-"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// WebhookEvent is one queued delivery of a ledger event to an endpoint.
type WebhookEvent struct {
	ID                uuid.UUID          `json:"id"`
	WebhookEndpointID uuid.UUID          `json:"webhook_endpoint_id"`
	EventType         string             `json:"event_type"`
	Payload           json.RawMessage    `json:"payload"`
	Status            WebhookEventStatus `json:"status"`
	Attempts          int                `json:"attempts"`
	LastAttemptAt     *time.Time         `json:"last_attempt_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// TransferRequest is the payload for POST /accounts/transfer.
type TransferRequest struct {
	FromAccountID  string `json:"from_account_id"`
	ToAccountID    string `json:"to_account_id"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key"`
}

// CreditDebitRequest is the payload for POST /accounts/credit-debit.
type CreditDebitRequest struct {
	AccountID       string `json:"account_id"`
	Amount          int64  `json:"amount"`
	TransactionType string `json:"transaction_type"`
	IdempotencyKey  string `json:"idempotency_key"`
}

// LedgerResponse is the canonical response envelope for ledger operations (§6).
// The balance fields carry no omitempty: a debit that drains an account to
// zero, or a transfer that leaves the from-account at zero, must still
// report that zero rather than silently dropping the field.
type LedgerResponse struct {
	TransactionID  string `json:"transaction_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	Cached         bool   `json:"cached,omitempty"`
	FromAccountID  string `json:"from_account_id,omitempty"`
	ToAccountID    string `json:"to_account_id,omitempty"`
	AccountID      string `json:"account_id,omitempty"`
	NewBalance     int64  `json:"new_balance"`
	FromNewBalance int64  `json:"from_new_balance"`
	ToNewBalance   int64  `json:"to_new_balance"`
}
