package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	httprateredis "github.com/go-chi/httprate-redis"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	RequestLimit   int
	WindowDuration time.Duration
	// RedisClient enables limits shared across instances. Optional.
	RedisClient *redis.Client
	// PrefixKey namespaces the Redis counters (default "autolink:ratelimit").
	PrefixKey string
}

// DefaultRateLimitConfig limits each client IP to 100 requests per minute.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestLimit:   100,
		WindowDuration: time.Minute,
		PrefixKey:      "autolink:ratelimit",
	}
}

// RateLimit returns a middleware that rate limits requests per client IP.
func RateLimit(config RateLimitConfig) func(next http.Handler) http.Handler {
	defaults := DefaultRateLimitConfig()
	if config.RequestLimit <= 0 {
		config.RequestLimit = defaults.RequestLimit
	}
	if config.WindowDuration <= 0 {
		config.WindowDuration = defaults.WindowDuration
	}
	if config.PrefixKey == "" {
		config.PrefixKey = defaults.PrefixKey
	}

	options := []httprate.Option{
		httprate.WithLimitHandler(limitExceeded),
		httprate.WithKeyByRealIP(),
	}

	if config.RedisClient != nil {
		options = append(options, httprateredis.WithRedisLimitCounter(&httprateredis.Config{
			Client:    config.RedisClient,
			PrefixKey: config.PrefixKey,
		}))
	}

	return httprate.NewRateLimiter(config.RequestLimit, config.WindowDuration, options...).Handler
}

func limitExceeded(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"rate limit exceeded","status_code":429}`))
}
