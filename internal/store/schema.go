package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements creates every enum and table the system needs, each one
// idempotent (CREATE ... IF NOT EXISTS, or a guarded DO block for enums,
// since Postgres lacks "CREATE TYPE IF NOT EXISTS"). Grounded on the
// teacher's own bare "CREATE TABLE IF NOT EXISTS" startup style (see
// yashasviy-idempotent-payments-api's db.Initialize and
// davidtorcivia-schedlock's migrations.go in the retrieval pack) rather
// than a migration-framework dependency the teacher never carried.
var schemaStatements = []string{
	`DO $$ BEGIN
		CREATE TYPE idempotency_status AS ENUM ('pending', 'success', 'failed');
	EXCEPTION WHEN duplicate_object THEN NULL; END $$;`,

	`DO $$ BEGIN
		CREATE TYPE webhook_event_status AS ENUM ('pending', 'delivered', 'failed');
	EXCEPTION WHEN duplicate_object THEN NULL; END $$;`,

	`DO $$ BEGIN
		CREATE TYPE transaction_type AS ENUM ('transfer', 'credit', 'debit');
	EXCEPTION WHEN duplicate_object THEN NULL; END $$;`,

	`DO $$ BEGIN
		CREATE TYPE transaction_status AS ENUM ('success', 'failed');
	EXCEPTION WHEN duplicate_object THEN NULL; END $$;`,

	`CREATE TABLE IF NOT EXISTS businesses (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		email TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,

	`CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		business_id UUID NOT NULL REFERENCES businesses(id),
		key_hash TEXT UNIQUE NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,

	`CREATE INDEX IF NOT EXISTS idx_api_keys_hash ON api_keys(key_hash) WHERE is_active;`,

	`CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		business_id UUID NOT NULL REFERENCES businesses(id),
		currency CHAR(3) NOT NULL,
		balance BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,

	`CREATE INDEX IF NOT EXISTS idx_accounts_business ON accounts(business_id);`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		business_id UUID NOT NULL REFERENCES businesses(id),
		from_account_id UUID REFERENCES accounts(id),
		to_account_id UUID REFERENCES accounts(id),
		amount BIGINT NOT NULL,
		type transaction_type NOT NULL,
		status transaction_status NOT NULL,
		idempotency_key TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,

	`CREATE INDEX IF NOT EXISTS idx_transactions_business ON transactions(business_id);`,

	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		business_id UUID NOT NULL REFERENCES businesses(id),
		key TEXT NOT NULL,
		status idempotency_status NOT NULL,
		response_body JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (business_id, key)
	);`,

	`CREATE TABLE IF NOT EXISTS webhook_endpoints (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		business_id UUID NOT NULL REFERENCES businesses(id),
		url TEXT NOT NULL,
		secret TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,

	`CREATE INDEX IF NOT EXISTS idx_webhook_endpoints_business ON webhook_endpoints(business_id);`,

	`CREATE TABLE IF NOT EXISTS webhook_events (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		webhook_endpoint_id UUID NOT NULL REFERENCES webhook_endpoints(id),
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		status webhook_event_status NOT NULL DEFAULT 'pending',
		attempts INT NOT NULL DEFAULT 0,
		last_attempt_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,

	`CREATE INDEX IF NOT EXISTS idx_webhook_events_dispatch
		ON webhook_events(status, last_attempt_at) WHERE status = 'pending';`,
}

// Migrate applies the schema. Safe to call on every process start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
