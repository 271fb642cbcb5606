package middleware

import (
	"net/http"
	"sync"

	"github.com/fleximart/catalog-service/pkg/metrics"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// rateKey identifies the caller: the authenticated subject when AuthMiddleware
// ran first, otherwise the client IP.
func rateKey(c *gin.Context) string {
	if sub := Subject(c); sub != "" {
		return "sub:" + sub
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

func rejectRateLimited(c *gin.Context, limiter, retryAfter string) {
	c.Header("Retry-After", retryAfter)
	metrics.RateLimitRejected.WithLabelValues(limiter).Inc()
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
}

// RateLimitMiddleware enforces an in-process token bucket per caller: rps
// tokens per second, at most burst banked. Each call owns its buckets, so the
// read API and the review route can be limited independently.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	var buckets sync.Map // key -> *rate.Limiter
	return func(c *gin.Context) {
		key := rateKey(c)
		v, ok := buckets.Load(key)
		if !ok {
			v, _ = buckets.LoadOrStore(key, rate.NewLimiter(rate.Limit(rps), burst))
		}
		if !v.(*rate.Limiter).Allow() {
			rejectRateLimited(c, "memory", "1")
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
