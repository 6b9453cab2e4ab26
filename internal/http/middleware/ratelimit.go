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

// KeyFunc maps a request to the identity whose bucket it draws from.
type KeyFunc func(*gin.Context) string

// KeyByClientIP keys buckets by Gin's client IP (trusted proxies honoured).
func KeyByClientIP() KeyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

// RateLimitOptions configures NewRateLimiter.
type RateLimitOptions struct {
	RPS   float64 // refill rate; 0 refuses everything once the burst is spent
	Burst int     // bucket size; < 1 becomes 1
	Key   KeyFunc // defaults to KeyByClientIP

	// Costs charges more than one token for expensive routes, keyed by
	// "METHOD route-template". Costs above Burst are capped at Burst.
	Costs map[string]int

	// IdleTTL is how long an untouched bucket is kept; default 10m.
	IdleTTL time.Duration
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is an in-process token-bucket limiter with one bucket per
// key. Safe for concurrent use.
type RateLimiter struct {
	opt RateLimitOptions

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter applies defaults to opt and returns a limiter ready for
// Handler.
func NewRateLimiter(opt RateLimitOptions) *RateLimiter {
	if opt.Burst < 1 {
		opt.Burst = 1
	}
	if opt.Key == nil {
		opt.Key = KeyByClientIP()
	}
	if opt.IdleTTL <= 0 {
		opt.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		opt:       opt,
		buckets:   make(map[string]*bucket),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// limiter returns key's bucket, creating it on first use. At most once per
// IdleTTL it drops buckets idle for longer than IdleTTL.
func (rl *RateLimiter) limiter(key string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.opt.IdleTTL {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.opt.IdleTTL {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Limit(rl.opt.RPS), rl.opt.Burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

func (rl *RateLimiter) cost(c *gin.Context) int {
	n, ok := rl.opt.Costs[c.Request.Method+" "+c.FullPath()]
	switch {
	case !ok || n < 1:
		return 1
	case n > rl.opt.Burst:
		return rl.opt.Burst
	}
	return n
}

// retryAfter is the whole seconds until n tokens are available, at least 1.
// A zero refill rate never recovers, so clients are told to wait a minute.
func (rl *RateLimiter) retryAfter(lim *rate.Limiter, n int, now time.Time) int {
	if rl.opt.RPS <= 0 {
		return 60
	}
	r := lim.ReserveN(now, n)
	if !r.OK() {
		return 60
	}
	d := r.DelayFrom(now)
	r.CancelAt(now)
	return max(1, int(math.Ceil(d.Seconds())))
}

// IsRateBypass reports whether IdempotencyValidator flagged the request as
// a replay, which is served without spending tokens.
func IsRateBypass(c *gin.Context) bool {
	return c.GetBool(ctxKeyRateBypass)
}

// Handler enforces the limit. A refused request gets 429, a Retry-After
// header and the error envelope with retry_after_seconds.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	limit := strconv.Itoa(rl.opt.Burst)
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		now := rl.now()
		lim := rl.limiter(rl.opt.Key(c), now)
		n := rl.cost(c)
		c.Header("X-RateLimit-Limit", limit)
		if lim.AllowN(now, n) {
			c.Next()
			return
		}

		retry := rl.retryAfter(lim, n, now)
		c.Header("Retry-After", strconv.Itoa(retry))
		abortEnvelope(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded", gin.H{
			"retry_after_seconds": retry,
			"guidance":            "Slow down and retry after the indicated number of seconds; batch reviews into fewer ingest calls.",
		})
	}
}
