package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iamzubin/dodo-ledger/internal/idempotency"
	"github.com/iamzubin/dodo-ledger/internal/ledger"
)

func TestWriteEngineErrorStatusCodes(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"in progress", idempotency.ErrInProgress, http.StatusConflict},
		{"already completed", idempotency.ErrAlreadyCompleted, http.StatusConflict},
		{"account not found", ledger.ErrAccountNotFound, http.StatusNotFound},
		{"cross tenant", ledger.ErrCrossTenant, http.StatusNotFound},
		{"same account", ledger.ErrSameAccount, http.StatusBadRequest},
		{"invalid amount", ledger.ErrInvalidAmount, http.StatusBadRequest},
		{"currency mismatch", &ledger.CurrencyMismatchError{FromCurrency: "USD", ToCurrency: "EUR"}, http.StatusUnprocessableEntity},
		{"insufficient balance", &ledger.InsufficientBalanceError{Available: 10, Required: 100}, http.StatusUnprocessableEntity},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeEngineError(rec, tc.err)
			require.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}
