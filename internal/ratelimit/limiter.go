// Package ratelimit enforces a per-API-key request budget (spec §4.6's
// 429 path) using a token bucket per key, grounded on golang.org/x/time/rate
// the way other_examples' rate-limited services apply it: one limiter per
// principal, created lazily and cached.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter hands out a *rate.Limiter per key, creating it on first use.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// New builds a Limiter with the given refill rate (requests/sec) and burst.
func New(rps float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether a request for key may proceed right now, consuming
// a token if so.
func (l *Limiter) Allow(key string) bool {
	return l.forKey(key).Allow()
}

func (l *Limiter) forKey(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	rl, ok := l.limiters[key]
	if !ok {
		rl = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = rl
	}
	return rl
}
