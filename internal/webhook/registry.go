package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iamzubin/dodo-ledger/internal/domain"
)

// EndpointRegistry manages tenant-registered webhook endpoints — the CRUD
// surface the dispatcher's dequeue query reads through. Grounded on
// original_source/src/services/webhooks.rs's register_webhook/list_webhooks.
type EndpointRegistry struct {
	pool *pgxpool.Pool
}

// NewEndpointRegistry builds an EndpointRegistry bound to the shared pool.
func NewEndpointRegistry(pool *pgxpool.Pool) *EndpointRegistry {
	return &EndpointRegistry{pool: pool}
}

// Register inserts a new active webhook endpoint for businessID. If secret
// is empty, a random one is minted — registering an endpoint without
// specifying a secret is a reasonable caller convenience, not a spec
// requirement.
func (r *EndpointRegistry) Register(ctx context.Context, businessID uuid.UUID, url, secret string) (*domain.WebhookEndpoint, error) {
	if secret == "" {
		var err error
		secret, err = randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generate webhook secret: %w", err)
		}
	}

	var ep domain.WebhookEndpoint
	err := r.pool.QueryRow(ctx,
		`INSERT INTO webhook_endpoints (business_id, url, secret) VALUES ($1, $2, $3)
		 RETURNING id, business_id, url, secret, is_active, created_at`,
		businessID, url, secret,
	).Scan(&ep.ID, &ep.BusinessID, &ep.URL, &ep.Secret, &ep.IsActive, &ep.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("register webhook endpoint: %w", err)
	}
	return &ep, nil
}

// List returns every webhook endpoint registered by businessID.
func (r *EndpointRegistry) List(ctx context.Context, businessID uuid.UUID) ([]domain.WebhookEndpoint, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, business_id, url, is_active, created_at FROM webhook_endpoints WHERE business_id = $1 ORDER BY created_at`,
		businessID,
	)
	if err != nil {
		return nil, fmt.Errorf("list webhook endpoints: %w", err)
	}
	defer rows.Close()

	var endpoints []domain.WebhookEndpoint
	for rows.Next() {
		var ep domain.WebhookEndpoint
		if err := rows.Scan(&ep.ID, &ep.BusinessID, &ep.URL, &ep.IsActive, &ep.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook endpoint: %w", err)
		}
		endpoints = append(endpoints, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook endpoints: %w", err)
	}
	return endpoints, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
