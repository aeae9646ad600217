package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/careflow_backend/config"
)

// NewLimiterWithRedis rate-limits per client IP with a sliding window kept
// in Redis, so every replica shares the same counters.
func NewLimiterWithRedis(rdb *redis.Client, cfg config.RateLimit) fiber.Handler {
	limit := cfg.Max
	if limit <= 0 {
		limit = 20
	}
	window := time.Duration(cfg.ExpirationSeconds) * time.Second
	if window <= 0 {
		window = 30 * time.Second
	}

	return limiter.New(limiter.Config{
		Storage:           fiberredis.NewFromConnection(rdb),
		Max:               limit,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
	})
}
