package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/friendcoin/friendcoin/internal/request"
)

const rateLimitPrefix = "friendcoin:rl:"

// RateLimit caps requests per acting account (or client IP before
// authentication) per minute. The counter lives in Redis when a client is
// given so that it is shared across instances; otherwise a per-process token
// bucket is used.
func RateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	if cache == nil {
		return localRateLimit(maxPerMin)
	}
	return func(c *fiber.Ctx) error {
		key := rateLimitPrefix + rateSubject(c)
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err == nil && cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if err != nil {
			return c.Next() // fail-open on cache errors
		}
		if cnt > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}

func localRateLimit(maxPerMin int) fiber.Handler {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)
	every := rate.Every(time.Minute / time.Duration(maxPerMin))
	return func(c *fiber.Ctx) error {
		subject := rateSubject(c)
		mu.Lock()
		lim, ok := limiters[subject]
		if !ok {
			lim = rate.NewLimiter(every, maxPerMin)
			limiters[subject] = lim
		}
		mu.Unlock()
		if !lim.Allow() {
			return fiber.NewError(http.StatusTooManyRequests, "too many requests, try again later")
		}
		return c.Next()
	}
}

func rateSubject(c *fiber.Ctx) string {
	if id, _ := c.Locals(request.AccountKey).(string); id != "" {
		return "account:" + id
	}
	return "ip:" + c.IP()
}
