package middleware

import (
	"net"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type keyLimiter struct {
	lim *rate.Limiter
	ts  time.Time
}

type rateLimiter struct {
	mu      sync.Mutex
	m       map[string]*keyLimiter
	r       rate.Limit
	b       int
	ttl     time.Duration
	gcEvery time.Duration
	lastGC  time.Time
}

func newRateLimiter(r rate.Limit, burst int, ttl time.Duration) *rateLimiter {
	return &rateLimiter{
		m:       make(map[string]*keyLimiter),
		r:       r,
		b:       burst,
		ttl:     ttl,
		gcEvery: 30 * time.Second,
		lastGC:  time.Now(),
	}
}

// get returns the key's bucket, sweeping stale buckets at most once per
// gcEvery. The sweep rides on the request path so no background goroutine
// outlives the router.
func (rl *rateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastGC) >= rl.gcEvery {
		for k, v := range rl.m {
			if now.Sub(v.ts) > rl.ttl {
				delete(rl.m, k)
			}
		}
		rl.lastGC = now
	}

	kl, ok := rl.m[key]
	if ok {
		kl.ts = now
		return kl.lim
	}
	lim := rate.NewLimiter(rl.r, rl.b)
	rl.m[key] = &keyLimiter{lim: lim, ts: now}
	return lim
}

// RateLimit applies a token bucket per IP+path.
func RateLimit(r rate.Limit, burst int) gin.HandlerFunc {
	rl := newRateLimiter(r, burst, 2*time.Minute)
	return func(c *gin.Context) {
		ip := clientIP(c.Request.RemoteAddr)
		key := ip + "|" + c.FullPath()
		if key == ip+"|" {
			key = ip + "|" + c.Request.URL.Path
		}
		if !rl.get(key).Allow() {
			c.AbortWithStatusJSON(429, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
