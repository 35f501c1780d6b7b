package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SlidingWindowLimiter tracks request timestamps per subject over a
// rolling window. Entries roll off as the window advances, so memory is
// bounded by limit * active subjects.
type SlidingWindowLimiter struct {
	limit  int
	window time.Duration

	mu   sync.Mutex
	hits map[string][]time.Time
}

// NewSlidingWindowLimiter creates a limiter allowing limit requests per
// window per subject.
func NewSlidingWindowLimiter(limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
	}
}

// Allow records a request for subject at now and reports whether it is
// within the limit. When it is not, retryAfter says how long until the
// oldest recorded request rolls off the window.
func (l *SlidingWindowLimiter) Allow(subject string, now time.Time) (allowed bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	recent := l.hits[subject][:0]
	for _, t := range l.hits[subject] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	recent = append(recent, now)
	l.hits[subject] = recent

	if len(recent) > l.limit {
		return false, l.window - now.Sub(recent[0])
	}
	return true, 0
}

// RateLimit creates middleware throttling authenticated subjects to
// perMinute requests per rolling minute. Requests without an
// authenticated subject pass through; the auth middleware rejects them
// separately.
func RateLimit(perMinute int, logger *zap.Logger) gin.HandlerFunc {
	limiter := NewSlidingWindowLimiter(perMinute, time.Minute)

	return func(c *gin.Context) {
		username := c.GetString("username")
		if username == "" {
			c.Next()
			return
		}

		allowed, retryAfter := limiter.Allow(username, time.Now())
		if !allowed {
			seconds := int(retryAfter.Seconds()) + 1
			logger.Warn("rate limit exceeded",
				zap.String("username", username),
				zap.String("path", c.Request.URL.Path))
			c.Header("Retry-After", fmt.Sprintf("%d", seconds))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("Rate limit exceeded. Please try again after %d seconds.", seconds),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
