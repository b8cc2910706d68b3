package bootstrap

import (
	"sync"

	"golang.org/x/time/rate"
)

// ipLimiter hands out a per-IP token-bucket limiter, lazily created on
// first use and kept for the process lifetime. This is in-memory and
// per-process by design (§9 open question: behavior under a multi-process
// deployment is undefined).
type ipLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	perMinute int
	burst     int
}

func newIPLimiter(perMinute int) *ipLimiter {
	if perMinute <= 0 {
		perMinute = 5
	}
	return &ipLimiter{
		limiters:  make(map[string]*rate.Limiter),
		perMinute: perMinute,
		burst:     perMinute,
	}
}

// allow reports whether ip may proceed with a bootstrap attempt now,
// consuming one token from its bucket if so. The token is spent on every
// attempt, not just successful creations, so a client sending malformed or
// expired tokens burns its own budget as fast as a legitimate one — a
// deliberate widening of §4.8's "successful creations per minute" framing,
// traded for not having to re-derive the limiter decision after validation.
func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.burst)
		l.limiters[ip] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
