// Package middleware – RateLimiter
//
// RateLimiter is an in-memory token bucket per client, built on
// golang.org/x/time/rate. Buckets idle for longer than the TTL are evicted
// opportunistically during lookups. Health paths such as /health and /metrics
// can be exempted so scrapers never starve operators.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc maps a request to a bucket identity.
type KeyFunc func(*gin.Context) string

// KeyByClientOrIP prefers the id set by AdminToken and falls back to the
// client IP. Keys are namespaced ("client:..." vs "ip:...").
func KeyByClientOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if id := ClientFrom(c); id != "" {
			return "client:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is safe for concurrent use.
type RateLimiter struct {
	rps    rate.Limit
	burst  int
	keyFn  KeyFunc
	exempt map[string]struct{}

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	lookups  uint64
}

// NewRateLimiter builds a limiter allowing rps requests per second with the
// given burst per key. burst <= 0 is coerced to 1; rps <= 0 disables
// limiting.
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc, exemptPaths ...string) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	exempt := make(map[string]struct{}, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = struct{}{}
	}
	return &RateLimiter{
		rps:      limit,
		burst:    burst,
		keyFn:    keyFn,
		exempt:   exempt,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// getVisitor returns the limiter for key. Every 5000 lookups idle buckets
// are evicted first, so a stale bucket for key itself is also replaced.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= 5000 {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// retryAfter is the whole number of seconds until one token is refilled.
func (rl *RateLimiter) retryAfter() string {
	if rl.rps == rate.Inf || rl.rps <= 0 {
		return "1"
	}
	return strconv.Itoa(int(math.Ceil(1 / float64(rl.rps))))
}

// Handler enforces the limit and answers 429 with the standard envelope
// when a bucket is empty.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := rl.exempt[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		if rl.getVisitor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}
		c.Header("Retry-After", rl.retryAfter())
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
