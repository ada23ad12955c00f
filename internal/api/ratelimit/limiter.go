// Package ratelimit bounds how often a single client may submit work to the backend.
package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	DefaultRequestsPerMinute = 30
	DefaultWindowDuration    = time.Minute
)

type ipBucket struct {
	count     int64
	resetTime time.Time
}

// Limiter is a fixed-window per-IP request limiter.
type Limiter struct {
	mu        sync.Mutex
	ipBuckets map[string]*ipBucket

	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewLimiter creates a limiter allowing limit requests per window per IP.
// Non-positive values fall back to the defaults.
func NewLimiter(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultRequestsPerMinute
	}
	if window <= 0 {
		window = DefaultWindowDuration
	}
	return &Limiter{
		ipBuckets: make(map[string]*ipBucket),
		limit:     int64(limit),
		window:    window,
		now:       time.Now,
	}
}

// Middleware rejects requests over the limit with 429.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
			}
			return next(c)
		}
	}
}

// Allow records a request from ip and reports whether it is within the limit.
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	bucket, exists := l.ipBuckets[ip]
	if !exists || now.After(bucket.resetTime) {
		l.ipBuckets[ip] = &ipBucket{
			count:     1,
			resetTime: now.Add(l.window),
		}
		return true
	}

	if bucket.count >= l.limit {
		return false
	}

	bucket.count++
	return true
}

// Cleanup drops expired buckets. Its signature matches a scheduler task.
func (l *Limiter) Cleanup(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for ip, bucket := range l.ipBuckets {
		if now.After(bucket.resetTime) {
			delete(l.ipBuckets, ip)
		}
	}
	return nil
}

// Tracked returns the number of IPs with a live bucket.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ipBuckets)
}
