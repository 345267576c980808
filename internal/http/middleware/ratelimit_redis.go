package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"sodmax/internal/logger"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window limiter on Redis INCR/EXPIRE.
// A nil client or a Redis error lets the request through.
type RateLimiter struct {
	client redis.Cmdable
}

func NewRateLimiter(client redis.Cmdable) *RateLimiter {
	return &RateLimiter{client: client}
}

// ConnectRateLimiter dials addr and returns a limiter. If Redis cannot be
// reached the limiter is fail-open.
func ConnectRateLimiter(addr, password string, db int) *RateLimiter {
	if addr == "" {
		return NewRateLimiter(nil)
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("rate limiter redis unavailable, limiting disabled", "addr", addr, "error", err)
		_ = client.Close()
		return NewRateLimiter(nil)
	}
	return NewRateLimiter(client)
}

// ByIP limits per client IP. key format: rl:<window_seconds>:<ip>
func (l *RateLimiter) ByIP(maxRequests int, window time.Duration) gin.HandlerFunc {
	return l.limit(maxRequests, window, func(c *gin.Context) (string, bool) {
		return "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + c.ClientIP(), true
	})
}

// ByUser limits per authenticated user and must run after JWT.
// key format: rl:user:<user_id>:<window_seconds>
func (l *RateLimiter) ByUser(maxRequests int, window time.Duration) gin.HandlerFunc {
	return l.limit(maxRequests, window, func(c *gin.Context) (string, bool) {
		userID, ok := UserID(c)
		if !ok {
			return "", false
		}
		return "rl:user:" + strconv.FormatInt(userID, 10) + ":" + strconv.FormatInt(int64(window.Seconds()), 10), true
	})
}

func (l *RateLimiter) limit(maxRequests int, window time.Duration, keyFn func(*gin.Context) (string, bool)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.client == nil {
			c.Next()
			return
		}

		key, ok := keyFn(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := c.Request.Context()

		val, err := l.client.Incr(ctx, key).Result()
		if err != nil {
			c.Header("X-RateLimit-Error", "redis-error")
			c.Next()
			return
		}
		if val == 1 {
			l.client.Expire(ctx, key, window)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(max(0, int64(maxRequests)-val), 10))

		if val > int64(maxRequests) {
			RLBlocked.WithLabelValues(c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limited",
				"retry_after": int(window.Seconds()),
			})
			return
		}

		RLRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}
