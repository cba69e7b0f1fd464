package middleware

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused per-client limiter is kept.
const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client key.
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*clientLimiter
	rps    rate.Limit
	burst  int
	now    func() time.Time
	lastGC time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &RateLimiter{
		limits: make(map[string]*clientLimiter),
		rps:    rate.Limit(rps),
		burst:  burst,
		now:    time.Now,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastGC) > idleLimiterTTL {
		for k, cl := range rl.limits {
			if now.Sub(cl.lastSeen) > idleLimiterTTL {
				delete(rl.limits, k)
			}
		}
		rl.lastGC = now
	}

	if cl, ok := rl.limits[key]; ok {
		cl.lastSeen = now
		return cl.limiter
	}
	cl := &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst), lastSeen: now}
	rl.limits[key] = cl
	return cl.limiter
}

// Allow reports whether a request from key may proceed now.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

// RateLimit rejects requests over the per-IP budget with 429.
func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !rl.Allow(ip) {
			log.Printf("RateLimit: %s exceeded %v req/s on %s", ip, float64(rl.rps), c.FullPath())
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
