package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfshelf/internal/pkg/jwtutil"
)

type countingLimiter struct {
	hits map[string]int64
	err  error
}

func (l *countingLimiter) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if l.err != nil {
		return 0, 0, l.err
	}
	l.hits[key]++
	return l.hits[key], window / 2, nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func limitedRouter(counter HitCounter, limit int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", RateLimit(counter, "login", limit, time.Minute, quietLogger()), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func post(r *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = "203.0.113.7:4242"
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitRejectsOverLimit(t *testing.T) {
	limiter := &countingLimiter{hits: map[string]int64{}}
	r := limitedRouter(limiter, 2)

	assert.Equal(t, http.StatusNoContent, post(r, "/login").Code)
	assert.Equal(t, http.StatusNoContent, post(r, "/login").Code)

	rec := post(r, "/login")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Contains(t, limiter.hits, "login:203.0.113.7")
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := limitedRouter(&countingLimiter{err: errors.New("redis down")}, 1)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, post(r, "/login").Code)
	}
}

func TestAuthJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthJWT("secret"), func(c *gin.Context) {
		id, _ := c.Get(ContextUserIDKey)
		c.JSON(http.StatusOK, gin.H{"id": id, "keys": len(c.Keys)})
	})

	token, err := jwtutil.GenerateToken("secret", time.Minute, 42, "ada@example.com")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"bad signature", "Bearer " + token + "x", http.StatusUnauthorized},
		{"empty token", "Bearer   ", http.StatusUnauthorized},
		{"scheme only", "Bearer", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.JSONEq(t, `{"id":42,"keys":1}`, rec.Body.String())
			}
		})
	}
}
