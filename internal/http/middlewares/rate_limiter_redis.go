package middlewares

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter applies a GCRA limit kept in Redis.
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
	log     *slog.Logger
}

func NewRedisRateLimiter(rdb redis.UniversalClient, perMinute int, prefix string, log *slog.Logger) *RedisRateLimiter {
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit:   redis_rate.PerMinute(perMinute),
		prefix:  prefix,
		log:     log,
	}
}

func (rl *RedisRateLimiter) Middleware(keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFn(c)
		if key == "" {
			key = clientIP(c)
		}

		res, err := rl.limiter.Allow(c.Request.Context(), rl.prefix+key, rl.limit)
		if err != nil {
			// Redis being down must not take login down with it.
			rl.log.WarnContext(c.Request.Context(), "rate_limit_check_failed", "err", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit.Rate))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if res.Allowed == 0 {
			abortRateLimited(c, res.RetryAfter)
			return
		}

		c.Next()
	}
}
