package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestLockOrderDeterministic(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	first, second := lockOrder(a, b)
	require.Equal(t, a, first)
	require.Equal(t, b, second)

	// Reversed input order must yield the same lock order.
	first2, second2 := lockOrder(b, a)
	require.Equal(t, first, first2)
	require.Equal(t, second, second2)
}

func TestLockOrderEqual(t *testing.T) {
	a := uuid.New()
	first, second := lockOrder(a, a)
	require.Equal(t, a, first)
	require.Equal(t, a, second)
}
