package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize caps the number of cached vectors before eviction kicks in.
const DefaultCacheSize = 10000

type cacheEntry struct {
	Vector    []float32 `json:"vector"`
	CreatedAt time.Time `json:"created_at"`
	accesses  int
}

// Cache is the single lookup-or-compute embedding cache. Every component that
// needs vectors shares one Cache instance; the cache is the only caller of the
// underlying Provider. Keys are the full SHA-256 of the normalized text.
type Cache struct {
	provider Provider
	maxSize  int
	logger   *zap.Logger

	mu      sync.Mutex
	entries map[string]*cacheEntry
	hits    uint64
	misses  uint64

	group singleflight.Group
}

// NewCache wraps a Provider with the shared cache. maxSize <= 0 uses
// DefaultCacheSize.
func NewCache(provider Provider, maxSize int, logger *zap.Logger) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &Cache{
		provider: provider,
		maxSize:  maxSize,
		logger:   logger,
		entries:  make(map[string]*cacheEntry),
	}
}

// normalize collapses whitespace and lowercases so trivially different
// spellings of the same content share one vector.
func normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// contentKey returns the full (non-truncated) SHA-256 hex of normalized text.
func contentKey(text string) string {
	sum := sha256.Sum256([]byte(normalize(text)))
	return hex.EncodeToString(sum[:])
}

// Embed returns the cached vector for text, computing it through the provider
// on first encounter. Concurrent misses for the same content are collapsed
// into one provider call. A failed compute is retried once before surfacing.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := contentKey(text)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.accesses++
		c.hits++
		c.mu.Unlock()
		return e.Vector, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A racing caller may have stored the vector between our lookup and
		// this flight; never compute twice for the same content, and only
		// count a miss when we actually reach the provider.
		c.mu.Lock()
		if e, ok := c.entries[key]; ok {
			e.accesses++
			c.hits++
			c.mu.Unlock()
			return e.Vector, nil
		}
		c.misses++
		c.mu.Unlock()

		vector, embErr := c.provider.Embed(ctx, text)
		if embErr != nil {
			// Idempotent recompute: one retry before surfacing.
			vector, embErr = c.provider.Embed(ctx, text)
		}
		if embErr != nil {
			return nil, embErr
		}
		c.store(key, vector)
		return vector, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Dimension reports the underlying provider's vector dimension.
func (c *Cache) Dimension() int { return c.provider.Dimension() }

func (c *Cache) store(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxSize {
		c.evictCold()
	}
	c.entries[key] = &cacheEntry{
		Vector:    vector,
		CreatedAt: time.Now(),
		accesses:  1,
	}
}

// evictCold drops the 10% least-accessed entries. Caller holds the lock.
func (c *Cache) evictCold() {
	type keyed struct {
		key      string
		accesses int
	}
	all := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, keyed{k, e.accesses})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].accesses < all[j].accesses })

	evict := len(c.entries) / 10
	if evict < 1 {
		evict = 1
	}
	for _, k := range all[:evict] {
		delete(c.entries, k.key)
	}
	c.logger.Debug("embedding cache eviction", zap.Int("evicted", evict))
}

// Stats returns current size, hits and misses.
func (c *Cache) Stats() (size int, hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), c.hits, c.misses
}
