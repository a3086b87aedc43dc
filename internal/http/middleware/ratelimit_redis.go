package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/metrics"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

// RedisRateLimit implements a fixed-window limiter per client IP using
// Redis INCR/EXPIRE. key format: rl:<window_seconds>:<ip>
// With a nil client the in-process limiter is used instead.
func RedisRateLimit(rdb *redis.Client, maxRequests int, window time.Duration) gin.HandlerFunc {
	if rdb == nil {
		return SimpleRateLimit(maxRequests, window)
	}
	return func(c *gin.Context) {
		key := "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + c.ClientIP()
		limitRedis(c, rdb, key, maxRequests, window)
	}
}

// UserRateLimit limits an authenticated caller by user id rather than IP.
// JWT must run before it.
func UserRateLimit(rdb *redis.Client, maxRequests int, window time.Duration) gin.HandlerFunc {
	local := SimpleRateLimit(maxRequests, window)
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if rdb == nil {
			local(c)
			return
		}
		key := "user_rl:" + strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(int64(window.Seconds()), 10)
		limitRedis(c, rdb, key, maxRequests, window)
	}
}

func limitRedis(c *gin.Context, rdb *redis.Client, key string, maxRequests int, window time.Duration) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	val, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		// fail open
		c.Header("X-RateLimit-Error", "redis-error")
		c.Next()
		return
	}
	if val == 1 {
		rdb.Expire(ctx, key, window)
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-val), 10))

	if val > int64(maxRequests) {
		metrics.RLBlocked.WithLabelValues(c.FullPath()).Inc()
		c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	metrics.RLRequests.WithLabelValues(c.FullPath()).Inc()
	c.Next()
}
