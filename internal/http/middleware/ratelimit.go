// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory token-bucket rate limiter with per-key
// buckets and opportunistic eviction of idle entries. It is process-local:
// a single API container enforcing edge-level abuse control, not a
// distributed quota system and not an authorization mechanism.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to the identity that owns a rate-limit bucket.
// Implementations return a prefixed stable string such as "session:<id>" or
// "ip:<addr>".
type keyFunc func(*gin.Context) string

// KeyBySessionOrIP returns a keyFunc that prefers the chat session identity
// (the sessionId query parameter used by the polling widget, or the
// X-Chat-Session header sent on POSTs) and falls back to the client IP.
//
// Keying by session keeps one chatty widget from starving other visitors
// behind the same NAT. The prefixes keep session and IP namespaces from
// colliding ("session:abc123" vs "ip:203.0.113.7").
func KeyBySessionOrIP() keyFunc {
	return func(c *gin.Context) string {
		if s := c.Query("sessionId"); s != "" {
			return "session:" + s
		}
		if s := c.GetHeader(HeaderChatSession); s != "" {
			return "session:" + s
		}
		return "ip:" + c.ClientIP()
	}
}

// visitor pairs a bucket with its last-seen time for idle eviction.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds per-key token buckets behind a mutex. Buckets are
// created on demand; idle ones are evicted after a TTL during lookups so
// memory stays bounded. Safe for concurrent use.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	keyFn    keyFunc
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter constructs a limiter replenishing rps tokens per second
// with the given burst size (coerced to at least 1), keyed by keyFn.
// Install it with Handler().
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
	}
}

// getVisitor returns the limiter for key, creating it if absent. Every
// ~5000 lookups it sweeps idle entries first, so even the bucket being
// fetched can be evicted when it has aged out.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		lim := v.limiter
		rl.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	rl.mu.Unlock()
	return lim
}

// IsRateBypass reports whether IdempotencyValidator flagged this request as
// a replay of an already-completed one; replays are served without
// consuming tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Handler returns the enforcing middleware. Replays bypass limiting;
// everything else draws a token from its key's bucket or gets a 429 with a
// Retry-After header and the standard error envelope.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		if rl.getVisitor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get("X-Request-ID"),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
