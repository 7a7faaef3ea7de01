package middleware

import (
	"net/http"
	"sync"

	"adpivot/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter throttles the API with a global token bucket plus one bucket
// per client IP at a tenth of the global rate
type RateLimiter struct {
	rps    float64
	burst  int
	global *rate.Limiter
	logger *logger.Logger

	mu         sync.Mutex
	ipLimiters map[string]*rate.Limiter
}

// NewRateLimiter returns nil when rps is not positive, disabling the limit
func NewRateLimiter(rps float64, burst int, logger *logger.Logger) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:        rps,
		burst:      burst,
		global:     rate.NewLimiter(rate.Limit(rps), burst),
		logger:     logger,
		ipLimiters: make(map[string]*rate.Limiter),
	}
}

func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if !rl.global.Allow() || !rl.ipLimiter(ip).Allow() {
			rl.logger.WithContext(c.Request.Context()).WithFields(map[string]any{
				"ip":   ip,
				"path": c.Request.URL.Path,
			}).Warn("Rate limit exceeded")

			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "Rate limit exceeded",
				"request_id": c.GetString("request_id"),
			})
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) ipLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.ipLimiters[ip]
	if !ok {
		burst := max(rl.burst/10, 1)
		limiter = rate.NewLimiter(rate.Limit(rl.rps/10), burst)
		rl.ipLimiters[ip] = limiter
	}
	return limiter
}

// Cleanup forgets every per-IP bucket. Run it periodically.
func (rl *RateLimiter) Cleanup() {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	rl.ipLimiters = make(map[string]*rate.Limiter)
	rl.mu.Unlock()
}
