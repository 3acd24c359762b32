package configuration

import (
	"sync"

	"github.com/wocat/qcat-engine/log"
)

type cacheKey struct {
	code   string
	locale string
}

// Cache memoizes built trees per (code, locale). Readers never block on a
// build: concurrent misses for the same key may each build and the last
// write wins, which is immaterial because builds are deterministic. A
// stored tree is always fully built.
type Cache struct {
	build func(code, locale string) (*Tree, error)

	mu      sync.RWMutex
	entries map[cacheKey]*Tree
}

func NewCache(build func(code, locale string) (*Tree, error)) *Cache {
	return &Cache{
		build:   build,
		entries: map[cacheKey]*Tree{},
	}
}

// Get returns the cached tree for (code, locale), building it on a miss.
func (c *Cache) Get(code, locale string) (*Tree, error) {
	key := cacheKey{code: code, locale: locale}

	c.mu.RLock()
	tree, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		log.Debugf("configuration.cache.hit: %s/%s", code, locale)
		return tree, nil
	}

	log.Debugf("configuration.cache.miss: %s/%s", code, locale)
	tree, err := c.build(code, locale)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = tree
	c.mu.Unlock()
	return tree, nil
}

// Invalidate removes every locale entry for code.
func (c *Cache) Invalidate(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.code == code {
			delete(c.entries, key)
		}
	}
}

// Clear drops the whole cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[cacheKey]*Tree{}
}
