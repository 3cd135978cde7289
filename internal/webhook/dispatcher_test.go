package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoffElapsed(t *testing.T) {
	base := 10 * time.Second
	now := time.Date(2026, 1, 1, 0, 0, 30, 0, time.UTC)

	cases := []struct {
		name          string
		lastAttemptAt *time.Time
		attempts      int
		want          bool
	}{
		{"never attempted", nil, 0, true},
		{"first retry window open", ptr(now.Add(-11 * time.Second)), 0, true},
		{"first retry window not open", ptr(now.Add(-5 * time.Second)), 0, false},
		{"second retry needs 20s", ptr(now.Add(-21 * time.Second)), 1, true},
		{"second retry too soon", ptr(now.Add(-15 * time.Second)), 1, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := backoffElapsed(tc.lastAttemptAt, tc.attempts, base, now)
			require.Equal(t, tc.want, got)
		})
	}
}

func ptr(t time.Time) *time.Time { return &t }
