package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Pinger is anything that can report whether its backend answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Readiness lists the dependencies /ready checks.
type Readiness struct {
	Store Pinger
	// Redis is pinged only when RequireRedis is set (Redis-backed rate limiting).
	Redis        *redis.Client
	RequireRedis bool
	// AuthRequired is set when an identity provider was configured; AuthReady
	// reports whether a verifier could be built for it.
	AuthRequired bool
	AuthReady    bool
	Timeout      time.Duration
}

// RegisterHealth mounts /health (liveness) and /ready (dependency checks).
func RegisterHealth(r gin.IRouter, deps Readiness, started time.Time) {
	if deps.Timeout <= 0 {
		deps.Timeout = 2 * time.Second
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), deps.Timeout)
		defer cancel()

		ready := true
		status := map[string]bool{}

		status["store"] = deps.Store != nil && deps.Store.Ping(ctx) == nil
		ready = ready && status["store"]

		if deps.RequireRedis {
			status["redis"] = deps.Redis != nil && deps.Redis.Ping(ctx).Err() == nil
			ready = ready && status["redis"]
		}

		if deps.AuthRequired {
			status["auth"] = deps.AuthReady
			ready = ready && deps.AuthReady
		}

		uptime := time.Since(started).Round(time.Second).String()
		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": status, "uptime": uptime})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": status, "uptime": uptime})
	})
}
