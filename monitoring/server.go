package monitoring

import (
	"context"
	"fmt"
	"log"
	"time"

	"expo-tickets/security"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// HealthCheck reports readiness of a dependency; wired from main so this
// package stays ignorant of concrete clients beyond Redis.
type HealthCheck func() error

// StartOpsServer serves /metrics and /health on a port separate from the
// public flow, rate limited and optionally token guarded.
func StartOpsServer(port, tokenHash string, limiter *security.RateLimiter, checks map[string]HealthCheck) {
	e := echo.New()

	e.Use(limiter.OpsRateLimit())
	e.Use(security.TokenAuth(tokenHash))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", func(c echo.Context) error {
		for name, check := range checks {
			if err := check(); err != nil {
				return c.JSON(503, map[string]string{
					"status": "unhealthy",
					"check":  name,
					"error":  err.Error(),
				})
			}
		}
		return c.JSON(200, map[string]string{"status": "healthy"})
	})

	go func() {
		if err := e.Start(fmt.Sprintf(":%s", port)); err != nil {
			log.Printf("ops server stopped: %v", err)
		}
	}()
}

// RedisCheck adapts a Redis ping into a HealthCheck.
func RedisCheck(client *redis.Client) HealthCheck {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(ctx).Err()
	}
}
