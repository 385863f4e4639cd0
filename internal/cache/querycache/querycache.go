// Package querycache memoizes the MOCs of region queries in memory.
package querycache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/healpix-moc/internal/cache/keys"
	"github.com/mohammed-shakir/healpix-moc/internal/metrics"
	"github.com/mohammed-shakir/healpix-moc/pkg/moc"
)

// Cache is an LRU of query MOCs keyed by region and depth. MOCs are
// immutable, so cached values are shared with callers as is. A nil *Cache
// never hits. Safe for concurrent use.
type Cache struct {
	prefix  string
	lru     *lru.Cache[string, *moc.MOC]
	metrics *metrics.Collectors
}

// New returns a cache holding up to size MOCs, or nil when size <= 0.
func New(size int, prefix string, m *metrics.Collectors) (*Cache, error) {
	if size <= 0 {
		return nil, nil
	}
	l, err := lru.New[string, *moc.MOC](size)
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}
	return &Cache{prefix: prefix, lru: l, metrics: m}, nil
}

func (c *Cache) Get(region string, depth uint8) (*moc.MOC, bool) {
	if c == nil {
		return nil, false
	}
	m, ok := c.lru.Get(keys.Query(c.prefix, region, depth))
	if ok {
		c.metrics.CacheHit()
	} else {
		c.metrics.CacheMiss()
	}
	return m, ok
}

func (c *Cache) Add(region string, depth uint8, m *moc.MOC) {
	if c == nil || m == nil {
		return
	}
	c.lru.Add(keys.Query(c.prefix, region, depth), m)
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func (c *Cache) Purge() {
	if c != nil {
		c.lru.Purge()
	}
}
