package service

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/eito54/grosoq/internal/domain/model"
)

// resultCache remembers the last successful analysis. Only race-mode
// lookups are served from it; total-mode results are stored but never read.
type resultCache struct {
	mu    sync.Mutex
	items *cache.Cache
}

// newResultCache creates the cache. A zero ttl keeps the entry for the
// process lifetime.
func newResultCache(ttl time.Duration) *resultCache {
	cleanup := time.Duration(0)
	if ttl > 0 {
		cleanup = ttl * 2
	}
	return &resultCache{items: cache.New(ttl, cleanup)}
}

// cacheKey identifies an image and mode pair.
func cacheKey(image []byte, mode model.Mode) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:]) + ":" + mode.String()
}

func (c *resultCache) get(key string, mode model.Mode) (*Analysis, bool) {
	if mode == model.ModeTotal {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	a, ok := v.(*Analysis)
	if !ok {
		return nil, false
	}
	return a.clone(), true
}

// put replaces whatever was cached with a.
func (c *resultCache) put(key string, a *Analysis) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Flush()
	c.items.Set(key, a.clone(), cache.DefaultExpiration)
}

func (c *resultCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Flush()
}

func (c *resultCache) size() int {
	return c.items.ItemCount()
}
