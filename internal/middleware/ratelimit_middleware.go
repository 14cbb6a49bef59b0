package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apperrors "github.com/tiagofur/ordo-todo-sub018/internal/errors"
)

const (
	limiterIdleTTL = 10 * time.Minute
	maxLimiters    = 1024
)

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(c *gin.Context) string

// SurfaceKey buckets by the :surfaceId path parameter.
func SurfaceKey(c *gin.Context) string {
	return c.Param("surfaceId")
}

// RateLimit allows perSecond requests per key with the given burst. Requests
// without a key fall back to the client IP.
func RateLimit(perSecond float64, burst int, key KeyFunc) gin.HandlerFunc {
	limiters := newLimiterSet(perSecond, burst, limiterIdleTTL, maxLimiters, time.Now)

	return func(c *gin.Context) {
		k := key(c)
		if k == "" {
			k = c.ClientIP()
		}
		if !limiters.allow(k) {
			c.Header("Retry-After", "1")
			abort(c, apperrors.TooManyRequests("too many commands from this surface"))
			return
		}
		c.Next()
	}
}

type limiterEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

// limiterSet holds at most max token buckets. Keys come from clients, so
// room is made by dropping idle buckets first, then the least recently seen.
type limiterSet struct {
	mu        sync.Mutex
	perSecond rate.Limit
	burst     int
	ttl       time.Duration
	max       int
	now       func() time.Time
	entries   map[string]*limiterEntry
}

func newLimiterSet(perSecond float64, burst int, ttl time.Duration, max int, now func() time.Time) *limiterSet {
	if burst <= 0 {
		burst = 1
	}
	if max <= 0 {
		max = 1
	}
	return &limiterSet{
		perSecond: rate.Limit(perSecond),
		burst:     burst,
		ttl:       ttl,
		max:       max,
		now:       now,
		entries:   make(map[string]*limiterEntry),
	}
}

func (s *limiterSet) allow(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.entries[key]
	if !ok {
		if len(s.entries) >= s.max {
			s.evict(now)
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(s.perSecond, s.burst)}
		s.entries[key] = entry
	}
	entry.seen = now
	return entry.limiter.AllowN(now, 1)
}

func (s *limiterSet) evict(now time.Time) {
	oldestKey := ""
	var oldest time.Time
	for k, entry := range s.entries {
		if now.Sub(entry.seen) >= s.ttl {
			delete(s.entries, k)
			continue
		}
		if oldestKey == "" || entry.seen.Before(oldest) {
			oldestKey, oldest = k, entry.seen
		}
	}
	if len(s.entries) >= s.max {
		delete(s.entries, oldestKey)
	}
}

func (s *limiterSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
