package security

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, perMinute int) *RateLimiter {
	return &RateLimiter{
		redis:  redisClient,
		limit:  perMinute,
		window: time.Minute,
	}
}

// Middleware throttles mutating requests per participant, falling back to
// the client IP when no participant header is present. Reads pass through.
func (r *RateLimiter) Middleware() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if e.Request.Method == http.MethodGet {
			return e.Next()
		}

		identity := e.Request.Header.Get("X-Participant-ID")
		if identity == "" {
			identity = e.RealIP()
		}
		key := fmt.Sprintf("ratelimit:%s", identity)

		count, err := r.redis.Incr(e.Request.Context(), key).Result()
		if err != nil {
			// Redis trouble should not take the API down with it.
			return e.Next()
		}
		if count == 1 {
			r.redis.Expire(e.Request.Context(), key, r.window)
		}
		if count > int64(r.limit) {
			return apis.NewApiError(http.StatusTooManyRequests, "Too many requests. Please try again later.", nil)
		}

		return e.Next()
	}
}

// AntiBotMiddleware rejects requests from obvious scraper user agents.
func (r *RateLimiter) AntiBotMiddleware() func(e *core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		if isSuspiciousUserAgent(e.Request.Header.Get("User-Agent")) {
			return apis.NewForbiddenError("Access denied", nil)
		}
		return e.Next()
	}
}

func isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	for _, pattern := range suspicious {
		if strings.Contains(strings.ToLower(ua), pattern) {
			return true
		}
	}
	return false
}
