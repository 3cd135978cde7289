package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iamzubin/dodo-ledger/internal/domain"
)

// validCurrency checks shape only, against no list of known codes; the spec
// performs no currency conversion (§1 Non-goals), so any ISO-4217-shaped code
// the tenant asks for is accepted as long as it is three uppercase letters.
func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// CreateAccount provisions a new account for businessID with the configured
// opening balance (spec §4.5). The balance is a test-mode starting float
// per the open question in spec §9; see DESIGN.md for the decision to keep
// it configurable rather than hard-coded.
func (e *Engine) CreateAccount(ctx context.Context, businessID uuid.UUID, currency string, openingBalance int64) (*domain.Account, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if !validCurrency(currency) {
		return nil, ErrInvalidCurrency
	}

	var acc domain.Account
	err := e.pool.QueryRow(ctx,
		`INSERT INTO accounts (business_id, currency, balance) VALUES ($1, $2, $3)
		 RETURNING id, business_id, currency, balance, created_at`,
		businessID, currency, openingBalance,
	).Scan(&acc.ID, &acc.BusinessID, &acc.Currency, &acc.Balance, &acc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return &acc, nil
}
