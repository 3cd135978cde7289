package api

import (
	"errors"
	"net/http"

	"github.com/iamzubin/dodo-ledger/internal/idempotency"
	"github.com/iamzubin/dodo-ledger/internal/ledger"
)

// writeEngineError maps a ledger/idempotency error to an HTTP response,
// the generalized form of the teacher's respondWithError switch in
// internal/api/handler.go (spec §4.6 / §7).
func writeEngineError(w http.ResponseWriter, err error) {
	var (
		currencyErr    *ledger.CurrencyMismatchError
		insufficientErr *ledger.InsufficientBalanceError
	)

	switch {
	case errors.Is(err, idempotency.ErrInProgress):
		respondError(w, http.StatusConflict, "a request with this idempotency key is already in progress", nil)
	case errors.Is(err, idempotency.ErrAlreadyCompleted):
		respondError(w, http.StatusConflict, "a request with this idempotency key already completed", nil)
	case errors.Is(err, ledger.ErrAccountNotFound):
		respondError(w, http.StatusNotFound, "account not found", nil)
	case errors.Is(err, ledger.ErrCrossTenant):
		respondError(w, http.StatusNotFound, "account not found", nil)
	case errors.Is(err, ledger.ErrSameAccount),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidAccountID),
		errors.Is(err, ledger.ErrInvalidTransactionType),
		errors.Is(err, ledger.ErrInvalidCurrency):
		respondError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &currencyErr):
		respondError(w, http.StatusUnprocessableEntity, currencyErr.Error(), map[string]any{
			"from_currency": currencyErr.FromCurrency,
			"to_currency":   currencyErr.ToCurrency,
		})
	case errors.As(err, &insufficientErr):
		respondError(w, http.StatusUnprocessableEntity, insufficientErr.Error(), map[string]any{
			"available": insufficientErr.Available,
			"required":  insufficientErr.Required,
		})
	default:
		respondError(w, http.StatusInternalServerError, "internal error", nil)
	}
}
