package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter throttles requests per caller, falling back to the client
// address when auth is disabled.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	limiters sync.Map // key -> *cachedLimiter
}

// RateLimitOption configures a RateLimiter.
type RateLimitOption func(*RateLimiter)

// WithTTL sets how long an idle caller's limiter is kept.
func WithTTL(ttl time.Duration) RateLimitOption {
	return func(l *RateLimiter) { l.ttl = ttl }
}

// WithLimit sets the sustained rate (requests per second) and burst.
// A rate of 0 means unlimited.
func WithLimit(perSecond float64, burst int) RateLimitOption {
	return func(l *RateLimiter) {
		l.limit = rate.Limit(perSecond)
		l.burst = burst
	}
}

// NewRateLimiter creates a limiter. Without WithLimit it lets everything through.
func NewRateLimiter(opts ...RateLimitOption) *RateLimiter {
	l := &RateLimiter{ttl: 5 * time.Minute}
	for _, opt := range opts {
		opt(l)
	}
	if l.burst <= 0 {
		l.burst = 1
	}
	return l
}

// Middleware returns the rate limiting middleware.
func (l *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// RateLimit=0 means unlimited
			if l.limit > 0 {
				if !l.get(clientKey(r)).Allow() {
					w.Header().Set("Retry-After", "1")
					http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type cachedLimiter struct {
	limiter   *rate.Limiter
	expiresAt time.Time
}

func (l *RateLimiter) get(key string) *rate.Limiter {
	now := time.Now()
	if v, ok := l.limiters.Load(key); ok {
		cached := v.(*cachedLimiter)
		if now.Before(cached.expiresAt) {
			return cached.limiter
		}
		// expired, need to create new
	}

	limiter := rate.NewLimiter(l.limit, l.burst)
	l.limiters.Store(key, &cachedLimiter{
		limiter:   limiter,
		expiresAt: now.Add(l.ttl),
	})
	return limiter
}

func clientKey(r *http.Request) string {
	if caller := CallerFromContext(r.Context()); caller != "" {
		return "token:" + caller
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}
