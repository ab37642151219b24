package security

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

type RateLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{redis: redisClient, limit: limit, window: window}
}

// OpsRateLimit throttles the ops endpoints per client IP.
func (r *RateLimiter) OpsRateLimit() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: &redisStore{redis: r.redis, limit: r.limit, window: r.window},
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(429, map[string]string{
				"error": "Rate limit exceeded. Please try again later.",
			})
		},
	})
}

// redisStore counts requests per identifier in a fixed Redis window so the
// limit holds across replicas.
type redisStore struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

func (s *redisStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := fmt.Sprintf("ratelimit:ops:%s", identifier)
	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		// Fail open: a Redis hiccup should not take down /health.
		return true, nil
	}
	if count == 1 {
		s.redis.Expire(ctx, key, s.window)
	}

	return count <= int64(s.limit), nil
}

// TokenAuth guards the ops endpoints with a bearer token checked against a
// bcrypt hash from configuration. An empty hash disables the guard (local
// development).
func TokenAuth(tokenHash string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if tokenHash == "" {
				return next(c)
			}

			auth := c.Request().Header.Get("Authorization")
			const prefix = "Bearer "
			if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
				return c.JSON(401, map[string]string{"error": "Unauthorized"})
			}

			token := auth[len(prefix):]
			if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)); err != nil {
				return c.JSON(401, map[string]string{"error": "Unauthorized"})
			}

			return next(c)
		}
	}
}
