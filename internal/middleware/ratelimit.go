package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long a caller's bucket is kept after its last
// request. Without auth, callers are client IPs, so the map must not grow
// forever.
const limiterIdleTTL = 15 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit returns per-API-key rate limiting middleware using token buckets.
//
// Token bucket algorithm: each key gets a bucket that fills at `rps` tokens/sec
// up to `burst` tokens. Each request consumes one token. If the bucket is empty,
// the request is rejected with 429. rps <= 0 disables limiting.
//
// Go note: a plain sync.Mutex around the map is simpler here than a channel;
// the critical section is a lookup and an insert.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	limiters := make(map[string]*limiterEntry)
	lastSweep := time.Now()

	return func(c *gin.Context) {
		if rps <= 0 {
			c.Next()
			return
		}

		apiKey := c.GetString(ContextAPIKey)
		if apiKey == "" {
			// Auth middleware didn't run on this route.
			c.Next()
			return
		}

		now := time.Now()
		mu.Lock()
		if now.Sub(lastSweep) > limiterIdleTTL {
			for k, e := range limiters {
				if now.Sub(e.lastSeen) > limiterIdleTTL {
					delete(limiters, k)
				}
			}
			lastSweep = now
		}
		entry, ok := limiters[apiKey]
		if !ok {
			entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			limiters[apiKey] = entry
		}
		entry.lastSeen = now
		mu.Unlock()

		if !entry.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
