package common

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a simple in-memory fixed-window rate limiter per IP.
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	limit    int
	window   time.Duration
}

type visitor struct {
	windowStart time.Time
	count       int
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
	}
	go func() {
		for {
			time.Sleep(window)
			rl.cleanup()
		}
	}()
	return rl
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	for ip, v := range rl.visitors {
		if now.Sub(v.windowStart) > rl.window {
			delete(rl.visitors, ip)
		}
	}
}

// take counts one request for ip and reports whether it is within the limit.
func (rl *RateLimiter) take(ip string) (allowed bool, remaining int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists || time.Since(v.windowStart) > rl.window {
		v = &visitor{windowStart: time.Now()}
		rl.visitors[ip] = v
	}
	if v.count >= rl.limit {
		return false, 0
	}
	v.count++
	return true, rl.limit - v.count
}

// Middleware enforces the limit on every request except paths matched by skip.
// The views endpoint is excluded so that view tracking is never throttled.
func (rl *RateLimiter) Middleware(skip func(path string) bool) gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(rl.window / time.Second))

	return func(c *gin.Context) {
		if skip != nil && skip(c.Request.URL.Path) {
			c.Next()
			return
		}

		allowed, remaining := rl.take(c.ClientIP())
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// SkipViewTracking matches POST /api/v1/posts/{slug}/views paths.
func SkipViewTracking(path string) bool {
	return strings.HasPrefix(path, "/api/v1/posts/") && strings.HasSuffix(path, "/views")
}
