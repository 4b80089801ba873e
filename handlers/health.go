package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Check probes one dependency for readiness.
type Check func(ctx context.Context) error

// RegisterHealth adds /health (process is up) and /ready (every check passes).
func RegisterHealth(rg gin.IRouter, started time.Time, checks map[string]Check) {
	rg.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	rg.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		ready := true
		deps := make(map[string]bool, len(checks))
		for name, check := range checks {
			deps[name] = check(ctx) == nil
			ready = ready && deps[name]
		}

		body := gin.H{"deps": deps, "uptime": time.Since(started).String()}
		if !ready {
			body["status"] = "not_ready"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["status"] = "ready"
		c.JSON(http.StatusOK, body)
	})
}
