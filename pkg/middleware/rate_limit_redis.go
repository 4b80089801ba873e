package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/coursepilot/go-services/pkg/logger"
	"github.com/coursepilot/go-services/pkg/metrics"
)

// RedisRateLimitMiddleware is a fixed-window limiter shared by every replica.
// Each caller may make floor(rps*window)+burst requests per window.
func RedisRateLimitMiddleware(client redis.Cmdable, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(rps, burst)
	}
	windowSeconds := int64(window.Seconds())
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	allowed := int64(rps*float64(windowSeconds)) + int64(burst)
	ttl := time.Duration(windowSeconds+1) * time.Second

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		bucket := time.Now().Unix() / windowSeconds
		key := fmt.Sprintf("rl:%s:%d", clientKey(c), bucket)

		var incr *redis.IntCmd
		_, err := client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			incr = p.Incr(ctx, key)
			p.Expire(ctx, key, ttl)
			return nil
		})
		if err != nil {
			logger.Errorf("rate limit check failed: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "rate limit check failed"})
			return
		}
		if incr.Val() > allowed {
			c.Header("Retry-After", strconv.FormatInt(windowSeconds, 10))
			metrics.RateLimitRejected.WithLabelValues("redis").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("redis").Inc()
		c.Next()
	}
}
