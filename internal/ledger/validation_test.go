package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestValidateAmount(t *testing.T) {
	require.NoError(t, validateAmount(1))
	require.NoError(t, validateAmount(100000))

	require.ErrorIs(t, validateAmount(0), ErrInvalidAmount)
	require.ErrorIs(t, validateAmount(-5), ErrInvalidAmount)
}

func TestParseAccountID(t *testing.T) {
	id := uuid.New()
	parsed, err := parseAccountID(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = parseAccountID("not-a-uuid")
	require.ErrorIs(t, err, ErrInvalidAccountID)
}

func TestValidCurrency(t *testing.T) {
	require.True(t, validCurrency("USD"))
	require.True(t, validCurrency("EUR"))

	require.False(t, validCurrency("usd"))
	require.False(t, validCurrency("US"))
	require.False(t, validCurrency("DOLLARS"))
	require.False(t, validCurrency(""))
}
