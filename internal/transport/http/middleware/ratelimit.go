package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pdfshelf/internal/transport/http/response"
)

// HitCounter counts hits against a key inside a fixed window and reports the
// time left in that window.
type HitCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimit allows limit requests per client IP per window. Counter failures
// let the request through.
func RateLimit(counter HitCounter, name string, limit int, window time.Duration, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if counter == nil || limit <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("%s:%s", name, c.ClientIP())
		count, ttl, err := counter.Hit(c.Request.Context(), key, window)
		if err != nil {
			logger.WithError(err).WithField("limiter", name).Warn("rate limiter unavailable")
			c.Next()
			return
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit) {
			if ttl <= 0 {
				ttl = window
			}
			c.Header("Retry-After", strconv.Itoa(int(ttl.Round(time.Second).Seconds())))
			response.Error(c, http.StatusTooManyRequests, response.CodeTooManyRequests, "too many requests, try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}
