package route

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/notapoint/backend/internal/models"
)

// cacheItem is one cached matrix with its expiry.
type cacheItem struct {
	matrix     *Matrix
	expiration time.Time
}

// CachedProvider remembers provider matrices for a TTL. Store locations
// rarely move, so repeated comparisons from the same place reuse results.
type CachedProvider struct {
	next    DistanceProvider
	ttl     time.Duration
	maxSize int

	mutex sync.RWMutex
	data  map[string]cacheItem
}

// NewCachedProvider wraps next with a TTL cache of at most maxSize entries.
func NewCachedProvider(next DistanceProvider, ttl time.Duration, maxSize int) *CachedProvider {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &CachedProvider{
		next:    next,
		ttl:     ttl,
		maxSize: maxSize,
		data:    make(map[string]cacheItem),
	}
}

// Name reports the wrapped provider's name.
func (c *CachedProvider) Name() string { return c.next.Name() }

// Matrix serves from cache or asks the wrapped provider. Errors are not cached.
func (c *CachedProvider) Matrix(ctx context.Context, points []models.GeoPoint) (*Matrix, error) {
	key := cacheKey(points)

	c.mutex.RLock()
	item, exists := c.data[key]
	c.mutex.RUnlock()
	if exists && time.Now().Before(item.expiration) {
		return item.matrix, nil
	}

	m, err := c.next.Matrix(ctx, points)
	if err != nil {
		return nil, err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if len(c.data) >= c.maxSize {
		c.evictExpired()
	}
	if len(c.data) < c.maxSize {
		c.data[key] = cacheItem{matrix: m, expiration: time.Now().Add(c.ttl)}
	}
	return m, nil
}

// Size returns the number of cached entries, expired ones included.
func (c *CachedProvider) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// evictExpired must be called with the write lock held.
func (c *CachedProvider) evictExpired() {
	now := time.Now()
	for key, item := range c.data {
		if now.After(item.expiration) {
			delete(c.data, key)
		}
	}
}

func cacheKey(points []models.GeoPoint) string {
	var b strings.Builder
	for i, p := range points {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.FormatFloat(p.Lat, 'f', 5, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Lng, 'f', 5, 64))
	}
	return b.String()
}
