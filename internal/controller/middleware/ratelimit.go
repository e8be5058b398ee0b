package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter hands out a token bucket per caller, or per client address
// for unauthenticated requests. A bucket unused for the TTL is dropped.
type RateLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*cachedLimiter
}

type RateLimiterOption func(*RateLimiter)

func WithTTL(ttl time.Duration) RateLimiterOption {
	return func(rl *RateLimiter) { rl.ttl = ttl }
}

func WithClock(now func() time.Time) RateLimiterOption {
	return func(rl *RateLimiter) { rl.now = now }
}

func NewRateLimiter(perSecond float64, burst int, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		limit: rate.Limit(perSecond),
		burst: burst,
		ttl:   5 * time.Minute,
		now:   time.Now,

		limiters: make(map[string]*cachedLimiter),
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Middleware keys buckets by caller when it runs after Auth, and by
// client address otherwise.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.limiterFor(rl.key(r)).Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) key(r *http.Request) string {
	if caller, ok := CallerFromContext(r.Context()); ok {
		return "user:" + caller.ID().String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

type cachedLimiter struct {
	limiter   *rate.Limiter
	expiresAt time.Time
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	cached, ok := rl.limiters[key]
	if !ok || !now.Before(cached.expiresAt) {
		rl.prune(now)
		cached = &cachedLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = cached
	}
	cached.expiresAt = now.Add(rl.ttl)
	return cached.limiter
}

// prune drops idle buckets. Callers hold mu.
func (rl *RateLimiter) prune(now time.Time) {
	for key, cached := range rl.limiters {
		if !now.Before(cached.expiresAt) {
			delete(rl.limiters, key)
		}
	}
}

// Len reports how many buckets are tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}
