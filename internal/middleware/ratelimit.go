package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"bossfit/internal/config"
)

type callerBucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// RateLimiter hands out one token bucket per caller. Buckets idle for longer
// than IdleTTL are dropped on the next sweep.
type RateLimiter struct {
	buckets   sync.Map
	rps       rate.Limit
	burst     int
	idle      time.Duration
	nextSweep atomic.Int64
	now       func() time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		rps:   rate.Limit(cfg.UserRPS),
		burst: cfg.Burst,
		idle:  cfg.IdleTTL,
		now:   time.Now,
	}
}

func (rl *RateLimiter) allow(key string) bool {
	now := rl.now()
	value, ok := rl.buckets.Load(key)
	if !ok {
		value, _ = rl.buckets.LoadOrStore(key, &callerBucket{limiter: rate.NewLimiter(rl.rps, rl.burst)})
	}
	bucket := value.(*callerBucket)
	bucket.lastSeen.Store(now.UnixNano())
	allowed := bucket.limiter.AllowN(now, 1)

	rl.sweep(now)
	return allowed
}

// sweep runs at most once per idle period; the CAS picks a single sweeper.
func (rl *RateLimiter) sweep(now time.Time) {
	if rl.idle <= 0 {
		return
	}
	next := rl.nextSweep.Load()
	if now.UnixNano() < next || !rl.nextSweep.CompareAndSwap(next, now.Add(rl.idle).UnixNano()) {
		return
	}
	cutoff := now.Add(-rl.idle).UnixNano()
	rl.buckets.Range(func(key, value any) bool {
		if value.(*callerBucket).lastSeen.Load() < cutoff {
			rl.buckets.Delete(key)
		}
		return true
	})
}

// RateLimit throttles per authenticated user, falling back to the client IP.
// A non-positive rate disables it.
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rps <= 0 {
			c.Next()
			return
		}

		key := "ip:" + c.ClientIP()
		if user, ok := CurrentUser(c); ok {
			key = "user:" + strconv.FormatInt(user.ID, 10)
		}

		if !rl.allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate limit exceeded, please try again later",
			})
			return
		}

		c.Next()
	}
}
