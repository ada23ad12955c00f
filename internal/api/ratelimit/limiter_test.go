package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Allow(t *testing.T) {
	l := NewLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "buckets are per IP")

	now = now.Add(time.Minute + time.Second)
	assert.True(t, l.Allow("10.0.0.1"), "window reset")
}

func TestLimiter_Cleanup(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	require.Equal(t, 2, l.Tracked())

	now = now.Add(2 * time.Minute)
	require.NoError(t, l.Cleanup(context.Background()))
	assert.Equal(t, 0, l.Tracked())
}

func TestLimiter_Middleware(t *testing.T) {
	e := echo.New()
	l := NewLimiter(1, time.Minute)
	e.POST("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, l.Middleware())

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "request %d", i)
	}
}
