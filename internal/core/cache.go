package core

import (
	"sync"

	"github.com/omarelbidi/bankcore/internal/metrics"
)

// cache is a concurrency-safe string-keyed map used by the Bank facade
// for its customer and account read-through caches. Lookups record hit
// and miss counters.
type cache[V any] struct {
	mu sync.RWMutex
	m  map[string]V
}

func newCache[V any]() *cache[V] {
	return &cache[V]{m: make(map[string]V)}
}

func (c *cache[V]) get(key string) (V, bool) {
	c.mu.RLock()
	v, ok := c.m[key]
	c.mu.RUnlock()
	if ok {
		metrics.Default.CacheHits.Inc()
	} else {
		metrics.Default.CacheMisses.Inc()
	}
	return v, ok
}

func (c *cache[V]) put(key string, v V) {
	c.mu.Lock()
	c.m[key] = v
	c.mu.Unlock()
}

// update applies fn to the entry under key while holding the write
// lock, so concurrent read-modify-write sequences cannot lose each
// other's result. It reports false when the key is absent.
func (c *cache[V]) update(key string, fn func(V) V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	if !ok {
		return false
	}
	c.m[key] = fn(v)
	return true
}

func (c *cache[V]) remove(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

func (c *cache[V]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// snapshot returns the cached values in unspecified order.
func (c *cache[V]) snapshot() []V {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]V, 0, len(c.m))
	for _, v := range c.m {
		out = append(out, v)
	}
	return out
}
