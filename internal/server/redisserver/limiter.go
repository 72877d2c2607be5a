package redisserver

import (
	"sync"

	"golang.org/x/time/rate"
)

// rateLimiterRegistry hands out one command rate limiter per client IP.
// Connections from the same IP share a limiter; it is dropped when the
// last of them closes.
type rateLimiterRegistry struct {
	limit int

	mu       sync.Mutex
	limiters map[string]*sharedLimiter
}

type sharedLimiter struct {
	limiter *rate.Limiter
	refs    int
}

func newRateLimiterRegistry(limit int) *rateLimiterRegistry {
	return &rateLimiterRegistry{
		limit:    limit,
		limiters: make(map[string]*sharedLimiter),
	}
}

// acquire returns the limiter for ip, creating it if needed.
// limit commands per second, burst = limit.
func (r *rateLimiterRegistry) acquire(ip string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	sl, ok := r.limiters[ip]
	if !ok {
		sl = &sharedLimiter{limiter: rate.NewLimiter(rate.Limit(r.limit), r.limit)}
		r.limiters[ip] = sl
	}
	sl.refs++
	return sl.limiter
}

// release drops one reference to the limiter for ip.
func (r *rateLimiterRegistry) release(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sl, ok := r.limiters[ip]
	if !ok {
		return
	}
	if sl.refs--; sl.refs <= 0 {
		delete(r.limiters, ip)
	}
}

func (r *rateLimiterRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
