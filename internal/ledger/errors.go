package ledger

import "errors"

// Sentinel errors for the conditions the engine can detect without extra
// context. Grounded on the teacher's own package-level error vars in
// internal/service/transfer.go (ErrAccountNotFound, ErrInsufficientFunds,
// ErrIdempotencyConflict), extended with the cases spec §4.3/§4.6 require.
var (
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInvalidAccountID       = errors.New("invalid account id format")
	ErrInvalidTransactionType = errors.New("transaction_type must be credit or debit")
	ErrAccountNotFound        = errors.New("account not found")
	ErrInvalidCurrency        = errors.New("currency must be a 3-letter uppercase code")
	ErrCrossTenant            = errors.New("account does not belong to this business")
	ErrSameAccount            = errors.New("from and to account must differ")
)

// CurrencyMismatchError carries both sides of a failed currency check (spec
// I3 / scenario 4) so the handler can surface "from_currency"/"to_currency".
type CurrencyMismatchError struct {
	FromCurrency string
	ToCurrency   string
}

func (e *CurrencyMismatchError) Error() string {
	return "Currency mismatch"
}

// InsufficientBalanceError carries the shortfall so the handler can surface
// "available"/"required" (spec scenario 3).
type InsufficientBalanceError struct {
	Available int64
	Required  int64
}

func (e *InsufficientBalanceError) Error() string {
	return "Insufficient balance"
}
