// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements two complementary in-memory rate limiters:
//
//   - RateLimiter: a per-identity token-bucket limiter installed at the edge
//     for general abuse control, using golang.org/x/time/rate.
//   - FixedWindow: a per-identity fixed-window counter used to enforce the
//     documented per-minute budgets of individual operations (token creation,
//     session creation, chunk ingestion, summarization).
//
// Both are process-local by design. For horizontally scaled deployments,
// prefer a distributed limiter (e.g., Redis-backed) to enforce global limits.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc selects the identity used to key a rate-limit bucket.
//
// Implementations should return a stable string for the duration of a request
// (e.g., "user:<id>" or "ip:<addr>"). The returned key is used to look up the
// corresponding bucket or window.
type keyFunc func(*gin.Context) string

// KeyByUserOrIP returns a keyFunc that prefers a user identity (from the Gin
// context, set by the auth middleware) and falls back to the client IP.
//
// The resulting keys are prefixed to avoid collisions between user and IP
// namespaces (e.g., "user:abc123" vs "ip:203.0.113.7").
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if s, ok := UserID(c); ok {
			return "user:" + s
		}
		return "ip:" + c.ClientIP()
	}
}

// visitor holds a single rate limiter and the last time it was seen.
// Used to opportunistically evict idle buckets.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements a per-key token-bucket rate limiter.
//
// Buckets are created on demand and stored in an internal map guarded by a
// mutex. Idle buckets are evicted after a TTL via opportunistic cleanup during
// lookups to keep memory usage bounded.
//
// This type is safe for concurrent use.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	keyFn    keyFunc
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
}

// NewRateLimiter constructs a RateLimiter with the given tokens-per-second
// and burst size, keyed by keyFn.
//
//   - rps:   tokens replenished per second (0 allows no requests; use >0).
//   - burst: maximum burst size; values <= 0 are coerced to 1.
//   - keyFn: function that maps a request to a bucket identity.
//
// The returned limiter is ready to be installed as middleware via Handler().
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute, // evict idle entries after TTL
	}
}

// getVisitor returns (and updates) the limiter for key, creating it if absent.
// It also performs opportunistic GC of idle entries after ~5000 lookups.
//
// IMPORTANT: Run GC *before* touching the requested visitor so an "old" bucket
// can be evicted even when it's the one being fetched.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := time.Now()

	rl.mu.Lock()
	// Opportunistic cleanup after a threshold of lookups, then reset the counter.
	// Do this BEFORE updating/creating the requested visitor to avoid
	// refreshing an "old" entry that should be evicted.
	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			// Evict if idle for >= TTL (robust boundary check)
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	// Fetch or create this visitor.
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

// Handler returns a Gin middleware that enforces per-key token-bucket limits.
//
// If the request is allowed it proceeds; otherwise a 429 response is returned
// with the standard error envelope and a minimal Retry-After header.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.keyFn(c)
		lim := rl.getVisitor(key)

		if lim.Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		abortRateLimited(c)
	}
}

// window tracks a single fixed-window counter: the number of admissions so
// far and the instant at which the window resets.
type window struct {
	count   int
	resetAt time.Time
}

// FixedWindow implements per-key fixed-window admission counting.
//
// Each key gets an independent window of the configured period. The first
// admission in a period opens the window; subsequent admissions increment the
// counter until the limit is reached, after which Admit reports false until
// the period elapses and a fresh window opens. Counters are not refunded when
// the downstream operation fails: an admitted request consumes budget.
//
// Expired windows are evicted opportunistically during lookups. The type is
// safe for concurrent use.
type FixedWindow struct {
	period time.Duration
	mu     sync.Mutex
	wins   map[string]*window

	cleanupN uint64
}

// NewFixedWindow constructs a FixedWindow with the given period. Periods
// <= 0 are coerced to one minute, which is the budget unit used throughout
// the API.
func NewFixedWindow(period time.Duration) *FixedWindow {
	if period <= 0 {
		period = time.Minute
	}
	return &FixedWindow{
		period: period,
		wins:   make(map[string]*window),
	}
}

// Admit records one admission for key against the given per-period limit and
// reports whether the request is within budget. Distinct keys never share a
// window, so callers can enforce several budgets by consulting separate
// FixedWindow instances (or disjoint key namespaces) for the same request.
func (fw *FixedWindow) Admit(key string, limit int) bool {
	if limit <= 0 {
		return false
	}
	now := time.Now()

	fw.mu.Lock()
	defer fw.mu.Unlock()

	// Opportunistic GC of expired windows, same cadence as RateLimiter.
	fw.cleanupN++
	if fw.cleanupN >= 5000 {
		for k, w := range fw.wins {
			if !now.Before(w.resetAt) {
				delete(fw.wins, k)
			}
		}
		fw.cleanupN = 0
	}

	w, ok := fw.wins[key]
	if !ok || !now.Before(w.resetAt) {
		fw.wins[key] = &window{count: 1, resetAt: now.Add(fw.period)}
		return true
	}
	if w.count >= limit {
		return false
	}
	w.count++
	return true
}

// RetryAfter returns the number of whole seconds until the window for key
// resets, rounded up, with a floor of 1. Used to populate the Retry-After
// header on 429 responses.
func (fw *FixedWindow) RetryAfter(key string) int {
	fw.mu.Lock()
	w, ok := fw.wins[key]
	fw.mu.Unlock()
	if !ok {
		return 1
	}
	secs := int(time.Until(w.resetAt).Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return secs
}

// PerUserBudget returns a middleware that admits at most limit requests per
// window for the authenticated user. The op string namespaces the counter so
// different operations can share one FixedWindow without colliding.
func (fw *FixedWindow) PerUserBudget(op string, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, _ := UserID(c)
		key := op + ":user:" + uid
		if !fw.Admit(key, limit) {
			c.Header("Retry-After", strconv.Itoa(fw.RetryAfter(key)))
			abortRateLimited(c)
			return
		}
		c.Next()
	}
}

// PerTokenAndUserBudget returns a middleware that enforces two budgets on one
// request: tokenLimit keyed by the presenting API token and userLimit keyed
// by the owning user. Both counters are consumed even when only one of them
// ends up rejecting the request, mirroring admission-before-work semantics.
func (fw *FixedWindow) PerTokenAndUserBudget(op string, tokenLimit, userLimit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, _ := UserID(c)
		tid, _ := TokenID(c)

		tokenKey := op + ":token:" + tid
		userKey := op + ":user:" + uid
		tokenOK := fw.Admit(tokenKey, tokenLimit)
		userOK := fw.Admit(userKey, userLimit)
		if !tokenOK || !userOK {
			retry := fw.RetryAfter(tokenKey)
			if !userOK {
				if r := fw.RetryAfter(userKey); r > retry {
					retry = r
				}
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			abortRateLimited(c)
			return
		}
		c.Next()
	}
}

// abortRateLimited writes the standard error envelope with a 429 status.
func abortRateLimited(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "rate_limited",
		"error":      "Rate limit exceeded",
	})
}
