package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedLimiter hands out one token bucket per key (a user ID, or "anonymous").
// Buckets idle for longer than the eviction window are dropped.
type KeyedLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idle     time.Duration
	limiters map[string]*keyedEntry
	now      func() time.Time
}

type keyedEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedLimiter allows perSecond events per key with the given burst.
// A non-positive perSecond disables limiting.
func NewKeyedLimiter(perSecond float64, burst int) *KeyedLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &KeyedLimiter{
		limit:    limit,
		burst:    burst,
		idle:     10 * time.Minute,
		limiters: make(map[string]*keyedEntry),
		now:      time.Now,
	}
}

// Allow reports whether n events for key may happen now.
func (l *KeyedLimiter) Allow(key string, n int) bool {
	if l == nil {
		return true
	}
	if key == "" {
		key = "anonymous"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evict(now)

	entry, ok := l.limiters[key]
	if !ok {
		entry = &keyedEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, n)
}

func (l *KeyedLimiter) evict(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > l.idle {
			delete(l.limiters, key)
		}
	}
}
