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

// keyFunc selects the identity used to key a rate-limit bucket.
type keyFunc func(*gin.Context) string

// KeyByClientOrIP keys buckets by ClientID when the caller identified itself
// and by remote IP otherwise. Prefixes keep the two namespaces apart.
func KeyByClientOrIP() keyFunc {
	return func(c *gin.Context) string {
		if id := ClientID(c); id != "anonymous" {
			return "client:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

// bucketClass splits each identity into a read and a write bucket. Every
// change event makes each open screen refetch its list, so reads are bursty
// while table and item mutations are not.
type bucketClass uint8

const (
	classRead bucketClass = iota
	classWrite
)

func classOf(method string) bucketClass {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return classRead
	}
	return classWrite
}

type bucketKey struct {
	id    string
	class bucketClass
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local token-bucket limiter with one read and one
// write bucket per identity. Idle buckets are swept at most once per
// sweepEvery. Safe for concurrent use.
type RateLimiter struct {
	read, write limit
	keyFn       keyFunc
	now         func() time.Time

	mu         sync.Mutex
	buckets    map[bucketKey]*bucket
	idle       time.Duration
	sweepEvery time.Duration
	lastSweep  time.Time
}

type limit struct {
	rps   rate.Limit
	burst int
}

func newLimit(rps float64, burst int) limit {
	if burst <= 0 {
		burst = 1
	}
	return limit{rps: rate.Limit(rps), burst: burst}
}

// RateOption customizes a RateLimiter.
type RateOption func(*RateLimiter)

// WithWriteLimit sets a separate budget for mutating requests. Without it
// writes get a quarter of the read rate (at least one token per second).
func WithWriteLimit(rps float64, burst int) RateOption {
	return func(rl *RateLimiter) { rl.write = newLimit(rps, burst) }
}

// WithIdleTTL sets how long an unused bucket survives before a sweep drops it.
func WithIdleTTL(d time.Duration) RateOption {
	return func(rl *RateLimiter) {
		if d > 0 {
			rl.idle = d
		}
	}
}

// NewRateLimiter builds a limiter allowing rps requests per second with the
// given burst for reads. Bursts <= 0 become 1.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc, opts ...RateOption) *RateLimiter {
	rl := &RateLimiter{
		read:       newLimit(rps, burst),
		write:      newLimit(math.Max(1, rps/4), burst/4),
		keyFn:      keyFn,
		now:        time.Now,
		buckets:    make(map[bucketKey]*bucket),
		idle:       10 * time.Minute,
		sweepEvery: time.Minute,
	}
	for _, o := range opts {
		o(rl)
	}
	rl.lastSweep = rl.now()
	return rl
}

// limiterFor returns the limiter for key, creating it on first use. Idle
// buckets are swept before the lookup so a stale bucket is replaced rather
// than refreshed.
func (rl *RateLimiter) limiterFor(k bucketKey) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.sweepEvery {
		for key, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.idle {
				delete(rl.buckets, key)
			}
		}
		rl.lastSweep = now
	}

	if b, ok := rl.buckets[k]; ok {
		b.lastSeen = now
		return b.limiter
	}
	l := rl.read
	if k.class == classWrite {
		l = rl.write
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	rl.buckets[k] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator marked this request as a
// replay, which is served without consuming tokens.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// retryAfter rounds d up to whole seconds, minimum 1.
func retryAfter(d time.Duration) string {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return strconv.Itoa(s)
}

// Handler enforces the limits. A websocket upgrade costs one read token for
// the life of the stream. Rejections are 429 with Retry-After set to the time
// until the next token and the usual error envelope.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsRateBypass(c) {
			c.Next()
			return
		}

		lim := rl.limiterFor(bucketKey{id: rl.keyFn(c), class: classOf(c.Request.Method)})
		r := lim.ReserveN(rl.now(), 1)
		if !r.OK() {
			// rps 0 with an exhausted burst never refills.
			rl.reject(c, time.Second)
			return
		}
		if d := r.DelayFrom(rl.now()); d > 0 {
			r.CancelAt(rl.now())
			rl.reject(c, d)
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) reject(c *gin.Context, wait time.Duration) {
	c.Header("Retry-After", retryAfter(wait))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"request_id": c.Writer.Header().Get("X-Request-ID"),
		"code":       "rate_limited",
		"message":    "rate limit exceeded",
	})
}
