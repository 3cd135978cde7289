package authgate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashKeyIsDeterministicAndDistinct(t *testing.T) {
	a := HashKey("sk_live_abc")
	b := HashKey("sk_live_abc")
	c := HashKey("sk_live_xyz")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 64) // hex-encoded SHA-256
}

func TestHashKeyEmpty(t *testing.T) {
	require.NotEmpty(t, HashKey(""))
}
