package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLimiterAllowsUpToBurst(t *testing.T) {
	l := New(1, 3)

	require.True(t, l.Allow("key-a"))
	require.True(t, l.Allow("key-a"))
	require.True(t, l.Allow("key-a"))
	require.False(t, l.Allow("key-a"))
}

func TestLimiterIsPerKey(t *testing.T) {
	l := New(1, 1)

	require.True(t, l.Allow("tenant-1"))
	require.False(t, l.Allow("tenant-1"))

	// A different key gets its own bucket.
	require.True(t, l.Allow("tenant-2"))
}
